package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"plant-relay/pkg/apierr"
)

// verifySignature checks the X-Signature header against the hex
// HMAC-SHA256 of the exact body bytes under the shared API key.
func (s *Server) verifySignature(r *http.Request, body []byte) error {
	sig := r.Header.Get("X-Signature")
	if sig == "" {
		return apierr.New(apierr.ErrUnauthorized, "missing signature")
	}
	mac := hmac.New(sha256.New, s.apiKey)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected)) {
		return apierr.New(apierr.ErrForbidden, "invalid signature")
	}
	return nil
}

// checkToken authorizes a command-API call via the X-Command-Token
// header (or a token query parameter for browser websocket clients).
// Absent and empty tokens are rejected before the comparison.
func (s *Server) checkToken(r *http.Request) error {
	token := r.Header.Get("X-Command-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return apierr.New(apierr.ErrUnauthorized, "missing command token")
	}
	if subtle.ConstantTimeCompare([]byte(token), s.commandToken) != 1 {
		return apierr.New(apierr.ErrUnauthorized, "invalid command token")
	}
	return nil
}
