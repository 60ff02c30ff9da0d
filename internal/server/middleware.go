package server

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"mysql-dbdriver/internal/security"
)

// maxBody bounds request bodies read for signature checks.
const maxBody = 1 << 20

// CORS answers preflight requests and sets the allow headers for the
// configured origins; "*" allows any.
func CORS(allowedOrigins []string, env string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allow := false
			if slices.Contains(allowedOrigins, "*") {
				allow = true
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" && slices.Contains(allowedOrigins, origin) {
				allow = true
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if env == "development" {
				logger.Debug("CORS check", "origin", origin, "allowed", allow)
			}

			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Signature, X-Timestamp")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Auth checks the X-API-Key header against a bcrypt hash and the request
// signature (X-Signature, X-Timestamp) against secret. Either check is
// skipped when its setting is empty.
func Auth(apiKeyHash, secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := security.VerifyAPIKey(apiKeyHash, r.Header.Get("X-API-Key")); err != nil {
				logger.Warn("Rejected request", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if secret != "" {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
				if err != nil {
					writeError(w, http.StatusBadRequest, "failed to read body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				err = security.VerifyHMAC(secret, r.Method, r.URL.Path, string(body),
					r.Header.Get("X-Timestamp"), r.Header.Get("X-Signature"))
				if err != nil {
					logger.Warn("Rejected request", "path", r.URL.Path, "error", err)
					writeError(w, http.StatusUnauthorized, err.Error())
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
