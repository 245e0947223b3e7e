package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authorizer decides whether a request may use the admin API. The decision
// is opaque to the handlers.
type Authorizer interface {
	Authorize(r *http.Request) error
}

type AuthorizerFunc func(r *http.Request) error

func (f AuthorizerFunc) Authorize(r *http.Request) error {
	return f(r)
}

// BearerToken accepts requests carrying "Authorization: Bearer <token>". An
// empty token rejects every request.
func BearerToken(token string) Authorizer {
	return AuthorizerFunc(func(r *http.Request) error {
		got, ok := bearer(r)
		if !ok {
			return ErrMissingToken
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return ErrInvalidToken
		}
		return nil
	})
}

func bearer(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func (h *Handler) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.auth.Authorize(r); err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
