package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

// ExpectedBasic builds the Authorization value a sender configured with
// secret presents: "Basic " followed by the padded base64 of the secret.
func ExpectedBasic(secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(secret))
}

// CheckBasic reports whether header matches the Basic value for secret.
// An empty secret leaves the endpoint open.
func CheckBasic(header, secret string) bool {
	if secret == "" {
		return true
	}
	return constantTimeEqual(header, ExpectedBasic(secret))
}

// Authorized applies CheckBasic to the request's Authorization header.
func Authorized(r *http.Request, secret string) bool {
	return CheckBasic(r.Header.Get("Authorization"), secret)
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
