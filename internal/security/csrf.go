package security

import (
	"crypto/subtle"
	"net/http"
)

// CSRFHeader is the request header carrying the double-submit token.
const CSRFHeader = "X-CSRF-Token"

// NewCSRFToken returns a fresh double-submit token.
func NewCSRFToken() (string, error) {
	return NewSessionToken()
}

// ValidateCSRFToken compares the header token against the cookie token in
// constant time. Any empty input or length mismatch fails.
func ValidateCSRFToken(headerToken, cookieToken string) bool {
	if headerToken == "" || cookieToken == "" {
		return false
	}
	if len(headerToken) != len(cookieToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) == 1
}

// SafeMethod reports whether the HTTP method is exempt from CSRF checks.
func SafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
