package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvax/vaxclinic-platform/internal/appointments"
	"github.com/openvax/vaxclinic-platform/internal/availability"
	"github.com/openvax/vaxclinic-platform/internal/clinics"
	"github.com/openvax/vaxclinic-platform/internal/http/middleware"
	"github.com/openvax/vaxclinic-platform/internal/identity"
	"github.com/openvax/vaxclinic-platform/internal/inventory"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

const testSecret = "router-test-secret"

func signToken(t *testing.T, role, subject, clinicID string) string {
	t.Helper()
	claims := middleware.Claims{
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

type fixedService struct{ appt *appointments.Appointment }

func (s *fixedService) Book(context.Context, identity.Actor, appointments.BookRequest) (*appointments.Appointment, error) {
	return s.appt, nil
}

func (s *fixedService) List(context.Context, identity.Actor, appointments.ListQuery) (*appointments.ListResult, error) {
	return &appointments.ListResult{Appointments: []*appointments.Appointment{s.appt}}, nil
}

func (s *fixedService) Get(context.Context, identity.Actor, uuid.UUID) (*appointments.Appointment, error) {
	return s.appt, nil
}

func (s *fixedService) UpdateStatus(context.Context, identity.Actor, uuid.UUID, appointments.StatusRequest) (*appointments.Appointment, error) {
	return s.appt, nil
}

func (s *fixedService) Cancel(context.Context, identity.Actor, uuid.UUID, appointments.CancelRequest) (*appointments.Appointment, error) {
	return s.appt, nil
}

func (s *fixedService) Reschedule(context.Context, identity.Actor, uuid.UUID, appointments.RescheduleRequest) (*appointments.Appointment, error) {
	return s.appt, nil
}

func (s *fixedService) Acknowledge(context.Context, identity.Actor, uuid.UUID) (*appointments.Appointment, error) {
	return s.appt, nil
}

func (s *fixedService) Delete(context.Context, identity.Actor, uuid.UUID) error {
	return nil
}

type noClinics struct{}

func (noClinics) GetActive(context.Context, string) (*clinics.Clinic, error) {
	return &clinics.Clinic{IsActive: true}, nil
}

type noTaken struct{}

func (noTaken) TakenSlots(context.Context, uuid.UUID, time.Time, time.Time) (availability.Taken, error) {
	return availability.Taken{}, nil
}

func newTestRouter(t *testing.T, mock pgxmock.PgxPoolIface) http.Handler {
	t.Helper()
	logger := logging.NewWithWriter("error", io.Discard)
	schedules := clinics.NewScheduleStore(nil, clinics.ScheduleDefaults{StartHour: 9, EndHour: 18, SlotMinutes: 30})

	return New(Config{
		Logger:             logger,
		JWTSecret:          testSecret,
		CORSAllowedOrigins: []string{"*"},
		Availability:       availability.NewHandler(noClinics{}, schedules, noTaken{}, 30, logger),
		Appointments:       appointments.NewHandler(&fixedService{appt: &appointments.Appointment{ID: uuid.New()}}, logger),
		Clinics:            clinics.NewHandler(clinics.NewRepositoryWithDB(mock), schedules, logger),
		Stats:              clinics.NewStatsHandler(clinics.NewStatsRepositoryWithDB(mock), logger),
		Inventory:          inventory.NewHandler(inventory.NewRepositoryWithDB(mock), logger),
	})
}

func get(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterPublicEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, get(router, "/health", "").Code)
	assert.Equal(t, http.StatusOK, get(router, "/metrics", "").Code)
}

func TestRouterRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/v1/appointments", "").Code)
}

func TestRouterRoleScoping(t *testing.T) {
	router := newTestRouter(t, nil)

	parent := signToken(t, "parent", uuid.NewString(), "")
	rr := get(router, "/api/v1/appointments", parent)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/"+uuid.NewString()+"/status", nil)
	req.Header.Set("Authorization", "Bearer "+parent)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusForbidden, out.Code, "parents cannot reach staff routes")

	rr = get(router, "/api/v1/admin/clinics/"+uuid.NewString()+"/inventory", parent)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterMalformedClinicID(t *testing.T) {
	router := newTestRouter(t, nil)

	admin := signToken(t, "admin", uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/admin/clinics/not-a-uuid/inventory", admin).Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/admin/clinics/not-a-uuid/stats", admin).Code)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/clinics/not-a-uuid/schedule", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	parent := signToken(t, "parent", uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/clinics/not-a-uuid/slots", parent).Code)
}

func TestRouterAdminInventory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	clinicID := uuid.NewString()
	mock.ExpectQuery(`SELECT id, clinic_id, vaccine_id, batch_number`).
		WithArgs(clinicID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "clinic_id", "vaccine_id", "batch_number", "remaining_doses", "expiry_date", "created_at",
		}).AddRow(uuid.New(), uuid.New(), uuid.New(), "LOT-12", 40, time.Now().AddDate(0, 6, 0), time.Now()))

	router := newTestRouter(t, mock)
	admin := signToken(t, "admin", uuid.NewString(), "")

	rr := get(router, "/api/v1/admin/clinics/"+clinicID+"/inventory", admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "LOT-12")
}
