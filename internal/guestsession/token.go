// Package guestsession issues and checks the bearer credential that lets an
// anonymous shopper act on exactly one order.
package guestsession

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
)

// HeaderName carries the credential on public requests.
const HeaderName = "X-Guest-Session"

const tokenBytes = 32

// ErrInvalid is returned for every credential failure so callers cannot tell
// an unknown order from a wrong token.
func ErrInvalid() error {
	return pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid session")
}

// Issue returns a fresh random token and the hash to persist.
func Issue() (token string, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("read random token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, Hash(token), nil
}

// Hash is the hex SHA-256 digest stored on the order.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify compares a presented token against the stored hash in constant time.
func Verify(token, storedHash string) bool {
	if token == "" || storedHash == "" {
		return false
	}
	presented := Hash(token)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}

// FormatCredential joins the order id and token into the opaque value handed
// to the client.
func FormatCredential(orderID uuid.UUID, token string) string {
	return orderID.String() + "." + token
}

// ParseCredential splits a credential. Any malformed input yields ErrInvalid.
func ParseCredential(credential string) (uuid.UUID, string, error) {
	credential = strings.TrimSpace(credential)
	idx := strings.IndexByte(credential, '.')
	if idx <= 0 || idx == len(credential)-1 {
		return uuid.Nil, "", ErrInvalid()
	}
	orderID, err := uuid.Parse(credential[:idx])
	if err != nil {
		return uuid.Nil, "", ErrInvalid()
	}
	return orderID, credential[idx+1:], nil
}
