package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Validator checks the credential header against the configured secret.
type Validator struct {
	secret string
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: secret}
}

// Validate reports whether header equals the secret exactly. An empty secret
// never validates.
func (v *Validator) Validate(header string) bool {
	return v.secret != "" && header == v.secret
}

// Require rejects requests whose credential header does not validate. Missing
// and wrong headers get the same 401 body.
func Require(v *Validator, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Validate(r.Header.Get(HeaderName)) {
				log.Info("rejected request", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
