package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubLookup struct {
	admins map[uuid.UUID]*AdminUser
}

func (s stubLookup) GetAdminByID(_ context.Context, id uuid.UUID) (*AdminUser, error) {
	if a, ok := s.admins[id]; ok {
		return a, nil
	}
	return nil, ErrAdminNotFound
}

func serveWithToken(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRequirePermission_ForbiddenWithoutRole(t *testing.T) {
	mw := RequirePermission(PermManageCodes)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	rr := serveWithToken(t, h, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestAuthMiddlewareAppliesCurrentRole(t *testing.T) {
	jwtSvc := NewJWTService("admin-secret", time.Hour)
	support := &AdminUser{ID: uuid.New(), Email: "s@jcq.test", Role: RoleSupport, IsActive: true}
	lookup := stubLookup{admins: map[uuid.UUID]*AdminUser{support.ID: support}}

	// A token minted while the account was admin must not keep admin rights.
	token, err := jwtSvc.GenerateToken(&AdminUser{ID: support.ID, Email: support.Email, Role: RoleAdmin})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var gotID uuid.UUID
	chain := AuthMiddleware(jwtSvc, lookup)(RequirePermission(PermManageCodes)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = GetAdminID(r.Context())
			w.WriteHeader(http.StatusOK)
		})))

	if rr := serveWithToken(t, chain, token); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for support role, got %d", rr.Code)
	}

	support.Role = RoleAdmin
	if rr := serveWithToken(t, chain, token); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", rr.Code)
	}
	if gotID != support.ID {
		t.Fatalf("expected admin id in context")
	}
}

func TestAuthMiddlewareRejectsInactiveAndUnknown(t *testing.T) {
	jwtSvc := NewJWTService("admin-secret", time.Hour)
	inactive := &AdminUser{ID: uuid.New(), Role: RoleSuperAdmin}
	lookup := stubLookup{admins: map[uuid.UUID]*AdminUser{inactive.ID: inactive}}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	chain := AuthMiddleware(jwtSvc, lookup)(ok)

	token, _ := jwtSvc.GenerateToken(inactive)
	if rr := serveWithToken(t, chain, token); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for inactive admin, got %d", rr.Code)
	}

	ghost, _ := jwtSvc.GenerateToken(&AdminUser{ID: uuid.New(), Role: RoleSuperAdmin})
	if rr := serveWithToken(t, chain, ghost); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown admin, got %d", rr.Code)
	}

	if rr := serveWithToken(t, chain, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	a := NewJWTService("one", time.Hour)
	b := NewJWTService("two", time.Hour)
	token, _ := a.GenerateToken(&AdminUser{ID: uuid.New(), Role: RoleAdmin})
	if _, err := b.ValidateToken(token); err == nil {
		t.Fatalf("expected validation failure")
	}
	claims, err := a.ValidateToken(token)
	if err != nil || claims.Role != RoleAdmin {
		t.Fatalf("expected valid claims, got %+v, %v", claims, err)
	}
}

func TestRolePermissions(t *testing.T) {
	if !RoleSuperAdmin.Can(PermManageSettings) {
		t.Fatalf("super admin must manage settings")
	}
	if RoleAdmin.Can(PermManageSettings) {
		t.Fatalf("admin must not manage settings")
	}
	if RoleSupport.Can(PermManagePurchases) {
		t.Fatalf("support must not manage purchases")
	}
	if Role("unknown").Can(PermViewPayments) {
		t.Fatalf("unknown role must have no permissions")
	}
}
