package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/shared"
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate verifies the bearer token of every request and stores the
// resulting rbac.Principal in the request context.
func Authenticate(verifier *Verifier, store func(ctx context.Context) IdentityStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := verifier.Verify(r.Context(), BearerToken(r), store(r.Context()))
			if err != nil {
				if !shared.Classified(err) && logger != nil {
					logger.Error("verify token", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			ctx := rbac.ContextWithPrincipal(r.Context(), rbac.Principal{
				ID:       user.ID,
				Username: user.Username,
				Email:    user.Email,
				Role:     user.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
