package auth

import (
	"context"
	"net/http"
	"strings"

	"readi/internal/httpjson"
)

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// Middleware requires a valid Bearer token and stores its claims in the
// request context. It has the shape of mux.MiddlewareFunc.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpjson.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authorization header", nil)
			return
		}
		claims, err := i.Verify(token)
		if err != nil {
			httpjson.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
