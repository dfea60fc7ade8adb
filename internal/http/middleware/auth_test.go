package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvax/vaxclinic-platform/internal/identity"
)

const testSecret = "test-secret"

func signToken(t *testing.T, role string, subject string, clinicID string) string {
	t.Helper()
	claims := Claims{
		Role:     role,
		ClinicID: clinicID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestAuthResolvesActor(t *testing.T) {
	parentID := uuid.New()
	var got identity.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.ActorFromContext(r.Context())
		require.True(t, ok)
		got = actor
		w.WriteHeader(http.StatusNoContent)
	})

	handler := Auth(testSecret, identity.RoleParent)(next)
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "parent", parentID.String(), ""))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, parentID, got.ID)
	assert.Equal(t, identity.RoleParent, got.Role)
}

func TestAuthStaffCarriesClinic(t *testing.T) {
	staffID := uuid.New()
	clinicID := uuid.New()
	var got identity.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = identity.ActorFromContext(r.Context())
	})

	handler := Auth(testSecret, identity.RoleStaff)(next)
	req := httptest.NewRequest(http.MethodPost, "/appointments/x/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "staff", staffID.String(), clinicID.String()))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, clinicID, got.ClinicID)
}

func TestAuthRejections(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler must not run")
	})

	tests := []struct {
		name   string
		header string
		roles  []identity.Role
		want   int
	}{
		{"missing header", "", []identity.Role{identity.RoleParent}, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", []identity.Role{identity.RoleParent}, http.StatusUnauthorized},
		{"wrong role", "Bearer " + signToken(t, "parent", uuid.NewString(), ""), []identity.Role{identity.RoleAdmin}, http.StatusForbidden},
		{"unknown role", "Bearer " + signToken(t, "superuser", uuid.NewString(), ""), []identity.Role{identity.RoleAdmin}, http.StatusUnauthorized},
		{"staff without clinic", "Bearer " + signToken(t, "staff", uuid.NewString(), ""), []identity.Role{identity.RoleStaff}, http.StatusUnauthorized},
		{"non-uuid subject", "Bearer " + signToken(t, "parent", "user-1", ""), []identity.Role{identity.RoleParent}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(testSecret, tt.roles...)(next)
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	handler := Auth("", identity.RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
