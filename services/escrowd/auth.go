package escrowd

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var errInvalidToken = errors.New("invalid or missing bearer token")

// Authenticator guards mutating endpoints with a static bearer token. An
// empty token disables authentication, which is only sensible for local
// development.
type Authenticator struct {
	token string
}

func NewAuthenticator(token string) *Authenticator {
	return &Authenticator{token: strings.TrimSpace(token)}
}

// Authenticate verifies the Authorization header against the configured
// token using a constant-time comparison.
func (a *Authenticator) Authenticate(r *http.Request) error {
	if a == nil || a.token == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return errInvalidToken
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) != 1 {
		return errInvalidToken
	}
	return nil
}

// Middleware rejects unauthenticated requests with 401 before the handler
// runs.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Authenticate(r); err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
