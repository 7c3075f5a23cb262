package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
)

var errMalformedAuth = errors.Wrap(auth.ErrUnauthorized, "malformed authorization header")

// bearerToken extracts the token from an "Authorization: Bearer" header.
// It returns "" with a nil error when the header is absent.
func bearerToken(r *http.Request) (string, error) {
	v := r.Header.Get("Authorization")
	if v == "" {
		return "", nil
	}
	scheme, token, ok := strings.Cut(v, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errMalformedAuth
	}
	return token, nil
}

// authenticate resolves the bearer token into an auth.Identity stored in the
// request context. Requests without a token pass through anonymously; a
// present but invalid token is rejected with 401.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			h.fail(w, r, "", err)
			return
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			h.fail(w, r, "", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}
