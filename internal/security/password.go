// Package security bundles the primitives on every write path: password
// hashing, session tokens, CSRF double-submit, signed visitor cookies,
// fixed-window rate limiting, and timing noise for equivocating endpoints.
package security

import (
	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used for new passwords.
const DefaultHashCost = 10

// HashPassword hashes a password with the given bcrypt cost, or the default
// when cost is zero.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = DefaultHashCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", eris.Wrap(err, "security: hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
