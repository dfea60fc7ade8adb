package clinics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

// Schedule is a clinic's slot-grid configuration. Slots run from StartHour
// to EndHour in SlotMinutes steps.
type Schedule struct {
	ClinicID    string `json:"clinic_id"`
	StartHour   int    `json:"start_hour"`
	EndHour     int    `json:"end_hour"`
	SlotMinutes int    `json:"slot_minutes"`
}

// Validate rejects grids that cannot produce at least one slot.
func (s *Schedule) Validate() error {
	if s.StartHour < 0 || s.EndHour > 24 || s.StartHour >= s.EndHour {
		return apperr.Validation("schedule hours must satisfy 0 <= start < end <= 24")
	}
	if s.SlotMinutes <= 0 || s.SlotMinutes > 60*(s.EndHour-s.StartHour) {
		return apperr.Validation("slot duration does not fit the operating hours")
	}
	return nil
}

// ScheduleDefaults supplies the platform-wide grid used when a clinic has no
// stored override.
type ScheduleDefaults struct {
	StartHour   int
	EndHour     int
	SlotMinutes int
}

// ScheduleStore keeps per-clinic schedule overrides in Redis. A nil client
// or a missing key yields the defaults, so the store is safe to run without
// Redis in development.
type ScheduleStore struct {
	redis    *redis.Client
	defaults ScheduleDefaults
}

// NewScheduleStore creates a schedule store. redisClient may be nil.
func NewScheduleStore(redisClient *redis.Client, defaults ScheduleDefaults) *ScheduleStore {
	return &ScheduleStore{redis: redisClient, defaults: defaults}
}

func (s *ScheduleStore) key(clinicID string) string {
	return fmt.Sprintf("clinic:schedule:%s", clinicID)
}

func (s *ScheduleStore) defaultSchedule(clinicID string) *Schedule {
	return &Schedule{
		ClinicID:    clinicID,
		StartHour:   s.defaults.StartHour,
		EndHour:     s.defaults.EndHour,
		SlotMinutes: s.defaults.SlotMinutes,
	}
}

// Get retrieves the clinic schedule, returning the defaults if not found.
func (s *ScheduleStore) Get(ctx context.Context, clinicID string) (*Schedule, error) {
	if s.redis == nil {
		return s.defaultSchedule(clinicID), nil
	}
	data, err := s.redis.Get(ctx, s.key(clinicID)).Bytes()
	if err == redis.Nil {
		return s.defaultSchedule(clinicID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("clinics: get schedule: %w", err)
	}

	var sched Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return nil, fmt.Errorf("clinics: unmarshal schedule: %w", err)
	}
	return &sched, nil
}

// Set saves a clinic schedule override.
func (s *ScheduleStore) Set(ctx context.Context, sched *Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	if s.redis == nil {
		return fmt.Errorf("clinics: schedule store has no redis backend")
	}
	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("clinics: marshal schedule: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(sched.ClinicID), data, 0).Err(); err != nil {
		return fmt.Errorf("clinics: set schedule: %w", err)
	}
	return nil
}
