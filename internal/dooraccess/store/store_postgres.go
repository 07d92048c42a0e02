package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"staykey/internal/dooraccess/models"
	id "staykey/pkg/domain"
	"staykey/pkg/sentinel"
)

// PostgresStore persists door transactions and access logs in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const txColumns = "transaction_id, property_id, room, status, outcome, reason, created_at, expires_at"
const logColumns = "id, booking_id, user_id, property_id, method, status, reason, device_info, transaction_id, access_time"

func (s *PostgresStore) CreateTransaction(ctx context.Context, tx models.DoorTransaction) error {
	query := `
		INSERT INTO door_transactions (` + txColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		tx.TransactionID,
		uuid.UUID(tx.PropertyID),
		tx.Room,
		string(tx.Status),
		nullString(string(tx.Outcome)),
		nullString(tx.Reason),
		tx.CreatedAt,
		tx.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert door transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindTransaction(ctx context.Context, transactionID string) (models.DoorTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM door_transactions WHERE transaction_id = $1`
	return scanTransaction(s.db.QueryRowContext(ctx, query, transactionID))
}

func (s *PostgresStore) Decide(ctx context.Context, transactionID string, outcome models.Outcome, reason string, entry models.AccessLogEntry) (models.DoorTransaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.DoorTransaction{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	query := `SELECT ` + txColumns + ` FROM door_transactions WHERE transaction_id = $1 FOR UPDATE`
	tx, err := scanTransaction(dbTx.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		return models.DoorTransaction{}, err
	}
	if tx.Status != models.AttemptActive {
		return tx, sentinel.ErrInvalidState
	}

	tx.Status = models.AttemptUsed
	tx.Outcome = outcome
	tx.Reason = reason

	update := `
		UPDATE door_transactions
		SET status = $2, outcome = $3, reason = $4
		WHERE transaction_id = $1`
	if _, err := dbTx.ExecContext(ctx, update, transactionID, string(tx.Status), string(tx.Outcome), tx.Reason); err != nil {
		return models.DoorTransaction{}, fmt.Errorf("update door transaction: %w", err)
	}

	insert := `
		INSERT INTO door_access_logs (` + logColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	var bookingID, userID uuid.NullUUID
	if entry.BookingID != nil {
		bookingID = uuid.NullUUID{UUID: uuid.UUID(*entry.BookingID), Valid: true}
	}
	if entry.UserID != nil {
		userID = uuid.NullUUID{UUID: uuid.UUID(*entry.UserID), Valid: true}
	}
	if _, err := dbTx.ExecContext(ctx, insert,
		entry.ID,
		bookingID,
		userID,
		uuid.UUID(entry.PropertyID),
		entry.Method,
		string(entry.Status),
		entry.Reason,
		entry.DeviceInfo,
		entry.TransactionID,
		entry.AccessTime,
	); err != nil {
		return models.DoorTransaction{}, fmt.Errorf("insert access log: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return models.DoorTransaction{}, fmt.Errorf("commit decision: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) MarkExpired(ctx context.Context, transactionID string) (models.DoorTransaction, error) {
	query := `
		UPDATE door_transactions
		SET status = $2
		WHERE transaction_id = $1 AND status = $3
		RETURNING ` + txColumns

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query,
		transactionID, string(models.AttemptExpired), string(models.AttemptActive)))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.DoorTransaction{}, err
	}

	// No active row matched: either missing or already decided.
	tx, err = s.FindTransaction(ctx, transactionID)
	if err != nil {
		return models.DoorTransaction{}, err
	}
	return tx, sentinel.ErrInvalidState
}

func (s *PostgresStore) LogsByBooking(ctx context.Context, bookingID id.BookingID) ([]models.AccessLogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM door_access_logs
		WHERE booking_id = $1
		ORDER BY access_time DESC`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("query access logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AccessLogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access logs: %w", err)
	}
	return entries, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanTransaction(r row) (models.DoorTransaction, error) {
	var tx models.DoorTransaction
	var propertyID uuid.UUID
	var outcome, reason sql.NullString

	err := r.Scan(
		&tx.TransactionID,
		&propertyID,
		&tx.Room,
		&tx.Status,
		&outcome,
		&reason,
		&tx.CreatedAt,
		&tx.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DoorTransaction{}, sentinel.ErrNotFound
		}
		return models.DoorTransaction{}, fmt.Errorf("scan door transaction: %w", err)
	}

	tx.PropertyID = id.PropertyID(propertyID)
	tx.Outcome = models.Outcome(outcome.String)
	tx.Reason = reason.String
	return tx, nil
}

func scanLogEntry(r row) (models.AccessLogEntry, error) {
	var entry models.AccessLogEntry
	var bookingID, userID uuid.NullUUID
	var propertyID uuid.UUID

	err := r.Scan(
		&entry.ID,
		&bookingID,
		&userID,
		&propertyID,
		&entry.Method,
		&entry.Status,
		&entry.Reason,
		&entry.DeviceInfo,
		&entry.TransactionID,
		&entry.AccessTime,
	)
	if err != nil {
		return models.AccessLogEntry{}, fmt.Errorf("scan access log entry: %w", err)
	}

	entry.PropertyID = id.PropertyID(propertyID)
	if bookingID.Valid {
		converted := id.BookingID(bookingID.UUID)
		entry.BookingID = &converted
	}
	if userID.Valid {
		converted := id.UserID(userID.UUID)
		entry.UserID = &converted
	}
	return entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
