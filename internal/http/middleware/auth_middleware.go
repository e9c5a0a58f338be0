package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/crowdprice-backend/internal/domain"
	"github.com/sandeepkv93/crowdprice-backend/internal/http/response"
	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
	"github.com/sandeepkv93/crowdprice-backend/internal/repository"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID uint
	User   *domain.User
}

// UserLookup resolves the user named by a token.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*domain.User, error)
}

// AuthMiddleware requires a bearer token. Missing tokens get 401, tokens that
// fail validation 403, tokens for deleted users 404 and lookup failures 500.
func AuthMiddleware(tokens TokenParser, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := bearerToken(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(ctx, "missing", "header")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(ctx, "invalid", "header")
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid access token", nil)
				return
			}
			user, err := users.GetByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					observability.RecordAccessTokenValidation(ctx, "user_not_found", "header")
					response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
					return
				}
				observability.RecordAccessTokenValidation(ctx, "lookup_error", "header")
				slog.ErrorContext(ctx, "auth user lookup failed", "user_id", claims.UserID, "error", err)
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to resolve user", nil)
				return
			}
			observability.RecordAccessTokenValidation(ctx, "ok", "header")
			annotateRequestLog(ctx, user.ID)
			ctx = WithIdentity(ctx, Identity{UserID: user.ID, User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}
