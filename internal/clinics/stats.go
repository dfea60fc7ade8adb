package clinics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

// Stats aggregates per-clinic appointment and inventory figures.
type Stats struct {
	ClinicID          string `json:"clinic_id"`
	AppointmentsToday int64  `json:"appointments_today"`
	Scheduled         int64  `json:"scheduled"`
	Completed         int64  `json:"completed"`
	Cancelled         int64  `json:"cancelled"`
	DosesOnHand       int64  `json:"doses_on_hand"`
	PeriodStart       string `json:"period_start"`
	PeriodEnd         string `json:"period_end"`
}

// statsDB defines the database interface needed by StatsRepository
type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries clinic metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("clinics: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats retrieves aggregated metrics for a clinic. Optional start/end
// bound the scheduled-date window; nil means all-time.
func (r *StatsRepository) GetStats(ctx context.Context, clinicID string, start, end *time.Time) (*Stats, error) {
	stats := &Stats{ClinicID: clinicID}

	var dateFilter string
	args := []any{clinicID}
	if start != nil && end != nil {
		dateFilter = " AND scheduled_date >= $2 AND scheduled_date < $3"
		args = append(args, *start, *end)
		stats.PeriodStart = start.Format("2006-01-02")
		stats.PeriodEnd = end.Format("2006-01-02")
	} else {
		stats.PeriodStart = "all-time"
		stats.PeriodEnd = "now"
	}

	todayQuery := `SELECT COUNT(*) FROM appointments WHERE clinic_id = $1 AND scheduled_date = CURRENT_DATE`
	if err := r.db.QueryRow(ctx, todayQuery, clinicID).Scan(&stats.AppointmentsToday); err != nil {
		return nil, fmt.Errorf("clinics stats: count today: %w", err)
	}

	scheduledQuery := `SELECT COUNT(*) FROM appointments WHERE clinic_id = $1 AND status IN ('SCHEDULED','CONFIRMED')` + dateFilter
	if err := r.db.QueryRow(ctx, scheduledQuery, args...).Scan(&stats.Scheduled); err != nil {
		return nil, fmt.Errorf("clinics stats: count scheduled: %w", err)
	}

	completedQuery := `SELECT COUNT(*) FROM appointments WHERE clinic_id = $1 AND status = 'COMPLETED'` + dateFilter
	if err := r.db.QueryRow(ctx, completedQuery, args...).Scan(&stats.Completed); err != nil {
		return nil, fmt.Errorf("clinics stats: count completed: %w", err)
	}

	cancelledQuery := `SELECT COUNT(*) FROM appointments WHERE clinic_id = $1 AND status = 'CANCELLED'` + dateFilter
	if err := r.db.QueryRow(ctx, cancelledQuery, args...).Scan(&stats.Cancelled); err != nil {
		return nil, fmt.Errorf("clinics stats: count cancelled: %w", err)
	}

	dosesQuery := `SELECT COALESCE(SUM(remaining_doses), 0) FROM vaccine_inventory WHERE clinic_id = $1 AND expiry_date > CURRENT_DATE`
	if err := r.db.QueryRow(ctx, dosesQuery, clinicID).Scan(&stats.DosesOnHand); err != nil {
		return nil, fmt.Errorf("clinics stats: sum doses: %w", err)
	}

	return stats, nil
}

// StatsHandler provides the admin statistics endpoint.
type StatsHandler struct {
	repo   *StatsRepository
	logger *logging.Logger
}

// NewStatsHandler creates a new stats HTTP handler.
func NewStatsHandler(repo *StatsRepository, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{repo: repo, logger: logger}
}

// GetStats returns aggregated metrics for a clinic.
// GET /api/v1/admin/clinics/{clinicID}/stats?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if _, err := uuid.Parse(clinicID); err != nil {
		http.Error(w, `{"error": "invalid clinic id"}`, http.StatusBadRequest)
		return
	}

	var start, end *time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			http.Error(w, `{"error": "invalid start date, use YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		start = &t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse("2006-01-02", e)
		if err != nil {
			http.Error(w, `{"error": "invalid end date, use YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		end = &t
	}
	if (start == nil) != (end == nil) {
		http.Error(w, `{"error": "both start and end must be provided, or neither"}`, http.StatusBadRequest)
		return
	}

	stats, err := h.repo.GetStats(r.Context(), clinicID, start, end)
	if err != nil {
		h.logger.Error("failed to get clinic stats", "clinic_id", clinicID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode clinic stats", "clinic_id", clinicID, "error", err)
	}
}
