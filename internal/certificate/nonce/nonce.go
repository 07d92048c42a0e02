// Package nonce derives the short disambiguator embedded in issued
// credential artifacts.
package nonce

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	id "staykey/pkg/domain"
)

// Generate computes the deterministic 4-character nonce for a
// (booking, holder, issuance date) triple. Same inputs always yield the
// same nonce, so the value doubles as a non-secret lookup key. The
// issuedDate is the YYYYMMDD date stamp of the issuance instant.
func Generate(bookingID id.BookingID, userID id.UserID, issuedDate string) string {
	sum := sha256.Sum256([]byte(bookingID.String() + userID.String() + issuedDate))
	hexSum := hex.EncodeToString(sum[:])
	return strings.ToUpper(hexSum[len(hexSum)-4:])
}
