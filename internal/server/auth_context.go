package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"hashfile/internal/models"
)

type authContextKey struct{}

type authPrincipal struct {
	AuthType string
	User     *models.User
}

func contextWithAuthPrincipal(ctx context.Context, principal authPrincipal) context.Context {
	return context.WithValue(ctx, authContextKey{}, principal)
}

func authPrincipalFromContext(ctx context.Context) (authPrincipal, bool) {
	if ctx == nil {
		return authPrincipal{}, false
	}
	principal, ok := ctx.Value(authContextKey{}).(authPrincipal)
	return principal, ok && principal.User != nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(message string) apiError {
	return apiError{
		status:  http.StatusUnauthorized,
		code:    "unauthorized",
		errCode: ErrCodeUnauthorized,
		err:     fmt.Errorf("%s", message),
	}
}

// withAuth rejects requests without a valid bearer token and stores the
// resolved identity in the request context.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="hashfile"`)
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized("missing bearer token"))
			return
		}

		user, err := s.authService.Authenticate(r.Context(), token)
		if err != nil && !isTokenError(err) {
			s.writeStoreError(w, r, err)
			return
		}
		if err != nil || user == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="hashfile", error="invalid_token"`)
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized("invalid or expired token"))
			return
		}

		ctx := contextWithAuthPrincipal(r.Context(), authPrincipal{AuthType: authTypeBearer, User: user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) withAuthFunc(fn http.HandlerFunc) http.Handler {
	return s.withAuth(fn)
}
