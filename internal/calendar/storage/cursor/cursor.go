// Package cursor encodes opaque pagination tokens for event listings.
//
// A token pins the position after the last returned row (start instant plus
// event id, so ties on start order deterministically) and carries a digest of
// the owner filter. Replaying a token against a different owner fails instead
// of silently leaking another owner's rows.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	apperrors "github.com/slotwise/slotwise/internal/platform/errors"
)

// ErrInvalidToken indicates a page token that is malformed or was issued for
// a different listing.
var ErrInvalidToken = apperrors.New(apperrors.CodePageTokenInvalid, "invalid page token")

// Cursor is the decoded position of a listing page boundary.
type Cursor struct {
	StartMillis int64  `json:"s"`
	EventID     string `json:"e"`
	OwnerDigest string `json:"o"`
}

// Encode serializes a position after (startMillis, eventID) for the given
// owner into an opaque token.
func Encode(startMillis int64, eventID, ownerID string) string {
	c := Cursor{
		StartMillis: startMillis,
		EventID:     eventID,
		OwnerDigest: digest(ownerID),
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token and verifies it was issued for ownerID.
func Decode(token, ownerID string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	if c.EventID == "" || c.OwnerDigest != digest(ownerID) {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

func digest(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:8])
}
