package middleware

import (
	"fmt"
	"net/http"

	"courier-dispatch/internal/dispatch-service/adapters/driver/myhttp/handle"
	"courier-dispatch/internal/dispatch-service/core/domain/model"
	"courier-dispatch/internal/dispatch-service/core/services"
)

type AuthMiddleware struct {
	auth *services.AuthService
}

func NewAuthMiddleware(auth *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// Wrap authenticates the request and forwards the verified identity to the
// handler through the X-UserId and X-Role headers.
func (am *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return am.WrapRoles(next)
}

// WrapRoles is Wrap with an allow-list of roles. An empty list admits any
// authenticated actor.
func (am *AuthMiddleware) WrapRoles(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("empty JWT-Token"))
			return
		}

		claims, err := am.auth.ValidateToken(tokenString)
		if err != nil {
			handle.JsonError(w, http.StatusUnauthorized, fmt.Errorf("invalid JWT-Token"))
			return
		}

		if len(roles) > 0 && !contains(roles, claims.Role) {
			handle.JsonError(w, http.StatusForbidden, fmt.Errorf("role %s not allowed here", claims.Role))
			return
		}

		r.Header.Set("X-UserId", claims.UserID)
		r.Header.Set("X-Role", claims.Role)

		next.ServeHTTP(w, r)
	})
}

// WrapBackOffice admits dispatchers and admins only.
func (am *AuthMiddleware) WrapBackOffice(next http.Handler) http.Handler {
	return am.WrapRoles(next, model.RoleAdmin, model.RoleDispatcher)
}

// WrapCourier admits couriers only.
func (am *AuthMiddleware) WrapCourier(next http.Handler) http.Handler {
	return am.WrapRoles(next, model.RoleCourier)
}

func contains(list []string, val string) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}
	return false
}
