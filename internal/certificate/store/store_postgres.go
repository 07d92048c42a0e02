package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"staykey/internal/certificate/models"
	id "staykey/pkg/domain"
	"staykey/pkg/sentinel"
)

// PostgresStore persists certificates in PostgreSQL. Uniqueness of
// (booking_id, nonce) and transaction_id is enforced by table
// constraints so racing issuances lose at commit time.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed certificate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const certColumns = `
	id, booking_id, user_id, grant_id, occupancy_role, transaction_id,
	credential_id, nonce, status, created_at, claimed_at, revoked_at, expires_at`

func (s *PostgresStore) Save(ctx context.Context, cert models.Certificate) error {
	query := `
		INSERT INTO certificates (id, booking_id, user_id, grant_id, occupancy_role,
			transaction_id, credential_id, nonce, status, created_at,
			claimed_at, revoked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	var grantID any
	if cert.GrantID != nil {
		grantID = uuid.UUID(*cert.GrantID)
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(cert.ID),
		uuid.UUID(cert.BookingID),
		uuid.UUID(cert.UserID),
		grantID,
		string(cert.Role),
		cert.TransactionID,
		nullString(cert.CredentialID),
		cert.Nonce,
		string(cert.Status),
		cert.CreatedAt,
		nullTime(cert.ClaimedAt),
		nullTime(cert.RevokedAt),
		nullTime(cert.ExpiresAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, certID id.CertificateID) (models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE id = $1`, certColumns)
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, query, uuid.UUID(certID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Certificate{}, sentinel.ErrNotFound
		}
		return models.Certificate{}, fmt.Errorf("find certificate by id: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) FindByTransactionID(ctx context.Context, transactionID string) (models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE transaction_id = $1`, certColumns)
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Certificate{}, sentinel.ErrNotFound
		}
		return models.Certificate{}, fmt.Errorf("find certificate by transaction id: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) FindByBookingAndNonce(ctx context.Context, bookingID id.BookingID, nonce string) (models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE booking_id = $1 AND nonce = $2`, certColumns)
	cert, err := scanCertificate(s.db.QueryRowContext(ctx, query, uuid.UUID(bookingID), nonce))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Certificate{}, sentinel.ErrNotFound
		}
		return models.Certificate{}, fmt.Errorf("find certificate by booking and nonce: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) ListByBooking(ctx context.Context, bookingID id.BookingID) ([]models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE booking_id = $1 ORDER BY created_at`, certColumns)
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(bookingID))
	if err != nil {
		return nil, fmt.Errorf("list certificates by booking: %w", err)
	}
	defer rows.Close()

	var out []models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate row: %w", err)
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificate rows: %w", err)
	}
	return out, nil
}

// Execute atomically validates and mutates a certificate under a row lock.
func (s *PostgresStore) Execute(ctx context.Context, certID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (models.Certificate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("begin certificate execute tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE id = $1 FOR UPDATE`, certColumns)
	cert, err := scanCertificate(tx.QueryRowContext(ctx, query, uuid.UUID(certID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Certificate{}, sentinel.ErrNotFound
		}
		return models.Certificate{}, fmt.Errorf("find certificate for execute: %w", err)
	}

	if err := validate(&cert); err != nil {
		return cert, err
	}

	mutate(&cert)
	_, err = tx.ExecContext(ctx, `
		UPDATE certificates
		SET credential_id = $2, status = $3, claimed_at = $4, revoked_at = $5, expires_at = $6
		WHERE id = $1`,
		uuid.UUID(cert.ID),
		nullString(cert.CredentialID),
		string(cert.Status),
		nullTime(cert.ClaimedAt),
		nullTime(cert.RevokedAt),
		nullTime(cert.ExpiresAt),
	)
	if err != nil {
		return models.Certificate{}, fmt.Errorf("update certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Certificate{}, fmt.Errorf("commit certificate execute: %w", err)
	}
	return cert, nil
}

type certRow interface {
	Scan(dest ...any) error
}

func scanCertificate(row certRow) (models.Certificate, error) {
	var (
		cert                       models.Certificate
		certID, bookingID, userID  uuid.UUID
		grantID                    uuid.NullUUID
		role, status               string
		credentialID               sql.NullString
		claimedAt, revokedAt       sql.NullTime
		expiresAt                  sql.NullTime
	)
	err := row.Scan(
		&certID, &bookingID, &userID, &grantID, &role, &cert.TransactionID,
		&credentialID, &cert.Nonce, &status, &cert.CreatedAt,
		&claimedAt, &revokedAt, &expiresAt,
	)
	if err != nil {
		return models.Certificate{}, err
	}
	cert.ID = id.CertificateID(certID)
	cert.BookingID = id.BookingID(bookingID)
	cert.UserID = id.UserID(userID)
	if grantID.Valid {
		g := id.GrantID(grantID.UUID)
		cert.GrantID = &g
	}
	cert.Role = models.OccupancyRole(role)
	cert.CredentialID = credentialID.String
	cert.Status = models.Status(status)
	cert.ClaimedAt = timePtr(claimedAt)
	cert.RevokedAt = timePtr(revokedAt)
	cert.ExpiresAt = timePtr(expiresAt)
	return cert, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
