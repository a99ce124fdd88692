package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/model"
	"courier-dispatch/internal/dispatch-service/core/services"

	"github.com/golang-jwt/jwt"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func identityEcho(t *testing.T, gotID, gotRole *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotID = r.Header.Get("X-UserId")
		*gotRole = r.Header.Get("X-Role")
		w.WriteHeader(http.StatusOK)
	})
}

func TestWrapForwardsIdentity(t *testing.T) {
	am := NewAuthMiddleware(services.NewAuthService(testSecret))

	var gotID, gotRole string
	handler := am.Wrap(identityEcho(t, &gotID, &gotRole))

	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "c-1", model.RoleCourier))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotID != "c-1" || gotRole != model.RoleCourier {
		t.Errorf("identity = %s/%s", gotID, gotRole)
	}
}

func TestWrapRejectsMissingOrBadToken(t *testing.T) {
	am := NewAuthMiddleware(services.NewAuthService(testSecret))
	handler := am.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", rec.Code)
	}
}

func TestWrapRolesEnforced(t *testing.T) {
	am := NewAuthMiddleware(services.NewAuthService(testSecret))

	var gotID, gotRole string
	handler := am.WrapBackOffice(identityEcho(t, &gotID, &gotRole))

	req := httptest.NewRequest(http.MethodPost, "/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "c-1", model.RoleCourier))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("courier on back-office route: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "disp-1", model.RoleDispatcher))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("dispatcher on back-office route: status = %d", rec.Code)
	}
}

func TestWrapStripsSpoofedIdentityHeaders(t *testing.T) {
	am := NewAuthMiddleware(services.NewAuthService(testSecret))

	var gotID, gotRole string
	handler := am.Wrap(identityEcho(t, &gotID, &gotRole))

	req := httptest.NewRequest(http.MethodGet, "/deliveries", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "c-1", model.RoleCourier))
	req.Header.Set("X-UserId", "admin-1")
	req.Header.Set("X-Role", model.RoleAdmin)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotID != "c-1" || gotRole != model.RoleCourier {
		t.Errorf("spoofed headers survived: %s/%s", gotID, gotRole)
	}
}
