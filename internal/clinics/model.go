// Package clinics provides read access to vaccination centers and their
// per-clinic schedule configuration.
package clinics

import (
	"time"

	"github.com/google/uuid"
)

// Clinic is a vaccination center where appointments occur and inventory is
// held. Shared reference data; never mutated by the booking path.
type Clinic struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	District  string    `json:"district"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
