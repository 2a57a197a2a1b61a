package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/manaedu/institute-onboarding/internal/httputil"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body.
const SignatureHeader = "X-Webhook-Signature"

// WebhookSignature creates middleware that verifies the HMAC-SHA256
// signature on identity provider callbacks. With no secret configured all
// deliveries are refused rather than accepted unverified.
func WebhookSignature(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				httputil.Error(w, http.StatusServiceUnavailable, "webhook verification is not configured")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				httputil.Error(w, http.StatusBadRequest, "unable to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sig, err := hex.DecodeString(r.Header.Get(SignatureHeader))
			if err != nil || len(sig) == 0 {
				httputil.Error(w, http.StatusUnauthorized, "missing or malformed signature")
				return
			}

			mac := hmac.New(sha256.New, secret)
			mac.Write(body)
			if !hmac.Equal(sig, mac.Sum(nil)) {
				httputil.Error(w, http.StatusUnauthorized, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
