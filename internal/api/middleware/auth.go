package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"innovate_api/internal/app/service"
	"innovate_api/internal/common"
	"innovate_api/internal/common/security"
	"innovate_api/internal/platform/cache"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey    contextKey = "userID"
	UserRoleCtxKey  contextKey = "userRole"
	PrincipalCtxKey contextKey = "principal"
)

// Auth turns the token verified by jwtauth.Verifier into a Principal on the request context.
type Auth struct {
	denylist cache.TokenDenylist
}

func NewAuth(denylist cache.TokenDenylist) *Auth {
	return &Auth{denylist: denylist}
}

func (a *Auth) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			if errors.Is(err, jwtauth.ErrNoTokenFound) || token == nil {
				respondUnauthorized(w, "Authorization token required")
			} else {
				respondUnauthorized(w, "Invalid token: "+err.Error())
			}
			return
		}
		if token == nil {
			respondUnauthorized(w, "Invalid token")
			return
		}

		principal, err := security.PrincipalFromClaims(claims)
		if err != nil {
			respondUnauthorized(w, "Invalid token claims: "+err.Error())
			return
		}

		if a.denylist != nil && principal.TokenID != "" {
			revoked, err := a.denylist.IsRevoked(r.Context(), principal.TokenID)
			if err != nil {
				// Redis being down must not lock everyone out.
				log.Printf("WARN: token denylist lookup failed: %v", err)
			} else if revoked {
				respondUnauthorized(w, "Token has been revoked")
				return
			}
		}
		if a.denylist != nil {
			// iat has second precision, so a token minted in the revoking second is rejected too.
			cutoff, err := a.denylist.UserRevokedBefore(r.Context(), principal.UserID)
			if err != nil {
				log.Printf("WARN: user revocation lookup failed: %v", err)
			} else if !cutoff.IsZero() && !principal.IssuedAt.After(cutoff) {
				respondUnauthorized(w, "Token has been revoked, please sign in again")
				return
			}
		}

		ctx := context.WithValue(r.Context(), PrincipalCtxKey, principal)
		ctx = context.WithValue(ctx, UserIDCtxKey, principal.UserID)
		ctx = context.WithValue(ctx, UserRoleCtxKey, principal.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits callers whose role is one of roles. Must run after Authenticator.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRoleFromContext(r.Context())
			if !ok {
				respondUnauthorized(w, "Authorization token required")
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			common.RespondWithJSON(w, http.StatusForbidden, common.ErrorResponse{
				Error: "Insufficient role for this resource",
				Code:  common.ErrorCodeFromError(common.ErrForbidden),
			})
		})
	}
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	common.RespondWithJSON(w, http.StatusUnauthorized, common.ErrorResponse{
		Error: message,
		Code:  common.ErrorCodeFromError(common.ErrUnauthorized),
	})
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	userRole, ok := ctx.Value(UserRoleCtxKey).(string)
	return userRole, ok
}

func GetPrincipal(ctx context.Context) (*security.Principal, bool) {
	p, ok := ctx.Value(PrincipalCtxKey).(*security.Principal)
	return p, ok
}

// ActorFromContext is the service-level view of the caller.
func ActorFromContext(ctx context.Context) (service.Actor, bool) {
	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		return service.Actor{}, false
	}
	role, _ := GetUserRoleFromContext(ctx)
	return service.Actor{UserID: userID, Role: role}, true
}
