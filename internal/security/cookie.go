package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// visitorSigLength is the truncated hex signature length.
const visitorSigLength = 16

// SignVisitorID produces the signed visitor cookie value `id.sig` where sig
// is the first 16 hex chars of HMAC-SHA256(secret, id).
func SignVisitorID(secret, visitorID string) string {
	return visitorID + "." + visitorSignature(secret, visitorID)
}

// VerifyVisitorID extracts the visitor id from a signed cookie value.
// Tampered or malformed values return "".
func VerifyVisitorID(secret, value string) string {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" || len(sig) != visitorSigLength {
		return ""
	}
	expected := visitorSignature(secret, id)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return ""
	}
	return id
}

func visitorSignature(secret, visitorID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(visitorID))
	return hex.EncodeToString(mac.Sum(nil))[:visitorSigLength]
}
