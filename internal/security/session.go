package security

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/rotisserie/eris"
)

// sessionTokenBytes of randomness; hex-encoded the token is 64 characters.
const sessionTokenBytes = 32

// NewSessionToken returns a cryptographically random session token.
func NewSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", eris.Wrap(err, "security: generate session token")
	}
	return hex.EncodeToString(buf), nil
}
