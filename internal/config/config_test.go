package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SlotStartHour != 9 || cfg.SlotEndHour != 18 {
		t.Errorf("slot hours = %d..%d, want 9..18", cfg.SlotStartHour, cfg.SlotEndHour)
	}
	if cfg.SlotDurationMinutes != 30 {
		t.Errorf("SlotDurationMinutes = %d, want 30", cfg.SlotDurationMinutes)
	}
	if cfg.BookingHorizonDays != 30 {
		t.Errorf("BookingHorizonDays = %d, want 30", cfg.BookingHorizonDays)
	}
	if cfg.OutboxInterval != 2*time.Second {
		t.Errorf("OutboxInterval = %s, want 2s", cfg.OutboxInterval)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Errorf("CORSAllowedOrigins = %v, want nil", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SLOT_DURATION_MINUTES", "15")
	t.Setenv("BOOKING_HORIZON_DAYS", "14")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("OUTBOX_INTERVAL", "500ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.SlotDurationMinutes != 15 {
		t.Errorf("SlotDurationMinutes = %d, want 15", cfg.SlotDurationMinutes)
	}
	if cfg.BookingHorizonDays != 14 {
		t.Errorf("BookingHorizonDays = %d, want 14", cfg.BookingHorizonDays)
	}
	if !cfg.RedisTLS {
		t.Error("RedisTLS should be true")
	}
	if cfg.OutboxInterval != 500*time.Millisecond {
		t.Errorf("OutboxInterval = %s, want 500ms", cfg.OutboxInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestInvalidNumericFallsBack(t *testing.T) {
	t.Setenv("SLOT_START_HOUR", "not-a-number")
	cfg := Load()
	if cfg.SlotStartHour != 9 {
		t.Errorf("SlotStartHour = %d, want default 9", cfg.SlotStartHour)
	}
}
