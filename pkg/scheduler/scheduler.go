// Package scheduler owns the deterministic clinic slot pool: generation,
// availability queries, and booking with stable booking ids. A pool belongs to
// a single run and is mutated only from that run's phase loop.
package scheduler

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

// DefaultSeed is the canonical pool seed used by the scheduling tool and the
// fallback plan synthesizer.
const DefaultSeed = 42

const (
	location      = "Main Clinic"
	slotMonths    = 6
	slotsPerMonth = 3
	slotDuration  = time.Hour
)

// serviceCatalog maps each service to its staff role and price. Order matters:
// services are assigned round-robin across the generated date sequence.
var serviceCatalog = []struct {
	service string
	staff   string
	price   float64
}{
	{models.ServiceBaselineBloodwork, "lab tech", 120},
	{models.ServiceVO2Test, "coach", 150},
	{models.ServiceScan, "nurse", 300},
	{models.ServiceLifestyleCoaching, "coach", 80},
}

// timeNow is stubbed in tests to pin the generated dates.
var timeNow = time.Now

// Pool is a per-run slot pool. Safe for concurrent readers and a single
// writer, though runs drive it serially in practice.
type Pool struct {
	mu    sync.Mutex
	slots []models.Slot
}

// NewPool generates the deterministic slot pool for the given seed: for each
// of 6 months, slots on days 3, 10, and 17 (clamped to 28) at 09:00 UTC, one
// hour long, with the four services cycling round-robin across the sequence.
// Generation depends only on the seed and the current date, so two pools
// created on the same day with the same seed serialize identically.
func NewPool(seed int) *Pool {
	base := timeNow().UTC().Truncate(24 * time.Hour).Add(9 * time.Hour)
	slots := make([]models.Slot, 0, slotMonths*slotsPerMonth)
	idx := 0
	for m := 0; m < slotMonths; m++ {
		anchor := base.AddDate(0, 0, 30*m)
		for i := 0; i < slotsPerMonth; i++ {
			day := 3 + i*7
			if day > 28 {
				day = 28
			}
			start := time.Date(anchor.Year(), anchor.Month(), day, 9, 0, 0, 0, time.UTC)
			svc := serviceCatalog[idx%len(serviceCatalog)]
			slots = append(slots, models.Slot{
				ServiceType: svc.service,
				StartISO:    start.Format(time.RFC3339),
				EndISO:      start.Add(slotDuration).Format(time.RFC3339),
				StaffRole:   svc.staff,
				Location:    location,
				Price:       svc.price,
			})
			idx++
		}
	}
	_ = seed // the schedule pattern is fixed; the seed only labels the pool
	return &Pool{slots: slots}
}

// Slots returns a snapshot copy of the pool.
func (p *Pool) Slots() []models.Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

// FindAvailable returns unbooked slots for serviceType whose start date
// (YYYY-MM-DD) is not in blackoutDates.
func (p *Pool) FindAvailable(serviceType string, blackoutDates []string) []models.Slot {
	blocked := make(map[string]struct{}, len(blackoutDates))
	for _, d := range blackoutDates {
		blocked[d] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Slot
	for _, s := range p.slots {
		if s.Booked || s.ServiceType != serviceType {
			continue
		}
		if _, hit := blocked[s.StartISO[:10]]; hit {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Book marks the first unbooked slot for serviceType as booked and returns
// the resulting appointment, or nil when no slot is available. When
// persistPath is non-empty the appointment is appended to that JSON file
// best-effort: a failed write is logged but does not roll back the booking.
func (p *Pool) Book(serviceType, userID, persistPath string) *models.Appointment {
	p.mu.Lock()
	var appt *models.Appointment
	for i := range p.slots {
		s := &p.slots[i]
		if s.Booked || s.ServiceType != serviceType {
			continue
		}
		s.Booked = true
		appt = &models.Appointment{
			ServiceType: s.ServiceType,
			StartISO:    s.StartISO,
			EndISO:      s.EndISO,
			StaffRole:   s.StaffRole,
			Location:    s.Location,
			Price:       s.Price,
			BookingID:   BookingID(userID, s.StartISO, s.ServiceType),
		}
		break
	}
	p.mu.Unlock()

	if appt != nil && persistPath != "" {
		if err := persistBooking(persistPath, *appt); err != nil {
			slog.Warn("Failed to persist booking", "path", persistPath, "booking_id", appt.BookingID, "error", err)
		}
	}
	return appt
}

// BookingID derives the stable booking id: the first 10 hex characters of
// SHA-1 over "{user_id}-{start_iso}-{service_type}".
func BookingID(userID, startISO, serviceType string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s-%s-%s", userID, startISO, serviceType)))
	return hex.EncodeToString(sum[:])[:10]
}

// persistBooking appends appt to the JSON array at path using
// read-modify-write. A missing or malformed existing file is treated as empty.
func persistBooking(path string, appt models.Appointment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create bookings directory: %w", err)
	}
	var existing []models.Appointment
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			existing = nil
		}
	}
	existing = append(existing, appt)
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bookings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write bookings file: %w", err)
	}
	return nil
}
