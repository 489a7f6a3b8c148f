package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

func pinClock(t *testing.T, iso string) {
	t.Helper()
	fixed, err := time.Parse(time.RFC3339, iso)
	require.NoError(t, err)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = orig })
}

func TestNewPool_Deterministic(t *testing.T) {
	pinClock(t, "2025-01-01T14:22:31Z")

	pool := NewPool(DefaultSeed)
	slots := pool.Slots()
	require.Len(t, slots, 18)

	// First month: days 3, 10, 17 at 09:00 UTC, services round-robin.
	assert.Equal(t, models.ServiceBaselineBloodwork, slots[0].ServiceType)
	assert.Equal(t, "2025-01-03T09:00:00Z", slots[0].StartISO)
	assert.Equal(t, "2025-01-03T10:00:00Z", slots[0].EndISO)
	assert.Equal(t, "lab tech", slots[0].StaffRole)
	assert.Equal(t, 120.0, slots[0].Price)

	assert.Equal(t, models.ServiceVO2Test, slots[1].ServiceType)
	assert.Equal(t, "2025-01-10T09:00:00Z", slots[1].StartISO)
	assert.Equal(t, models.ServiceScan, slots[2].ServiceType)
	assert.Equal(t, "2025-01-17T09:00:00Z", slots[2].StartISO)

	// The cycle continues into the next month rather than restarting.
	assert.Equal(t, models.ServiceLifestyleCoaching, slots[3].ServiceType)

	for _, s := range slots {
		assert.Equal(t, "Main Clinic", s.Location)
		assert.False(t, s.Booked)
	}
}

func TestNewPool_IdenticalSerialization(t *testing.T) {
	pinClock(t, "2025-03-15T08:00:00Z")

	a, err := json.Marshal(NewPool(DefaultSeed).Slots())
	require.NoError(t, err)
	b, err := json.Marshal(NewPool(DefaultSeed).Slots())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFindAvailable(t *testing.T) {
	pinClock(t, "2025-01-01T00:00:00Z")
	pool := NewPool(DefaultSeed)

	got := pool.FindAvailable(models.ServiceVO2Test, nil)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.Equal(t, models.ServiceVO2Test, s.ServiceType)
		assert.False(t, s.Booked)
	}

	// Blackout dates filter on the YYYY-MM-DD prefix.
	filtered := pool.FindAvailable(models.ServiceVO2Test, []string{got[0].StartISO[:10]})
	assert.Len(t, filtered, len(got)-1)

	// Booked slots drop out of availability.
	pool.Book(models.ServiceVO2Test, "u1", "")
	assert.Len(t, pool.FindAvailable(models.ServiceVO2Test, nil), len(got)-1)
}

func TestBook_StableBookingID(t *testing.T) {
	pinClock(t, "2025-01-01T00:00:00Z")
	pool := NewPool(DefaultSeed)

	// First vo2_test slot lands on 2025-01-10.
	appt := pool.Book(models.ServiceVO2Test, "u1", "")
	require.NotNil(t, appt)
	assert.Equal(t, "2025-01-10T09:00:00Z", appt.StartISO)
	assert.Equal(t, BookingID("u1", appt.StartISO, appt.ServiceType), appt.BookingID)
	assert.Len(t, appt.BookingID, 10)
}

func TestBookingID_KnownVector(t *testing.T) {
	assert.Equal(t, "81e428d28e", BookingID("u1", "2025-01-03T09:00:00Z", "vo2_test"))
}

func TestBook_ConsumesDistinctSlots(t *testing.T) {
	pinClock(t, "2025-01-01T00:00:00Z")
	pool := NewPool(DefaultSeed)

	first := pool.Book(models.ServiceScan, "u1", "")
	second := pool.Book(models.ServiceScan, "u1", "")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.StartISO, second.StartISO)
	assert.NotEqual(t, first.BookingID, second.BookingID)
}

func TestBook_ExhaustedServiceReturnsNil(t *testing.T) {
	pinClock(t, "2025-01-01T00:00:00Z")
	pool := NewPool(DefaultSeed)

	for pool.Book(models.ServiceScan, "u1", "") != nil {
	}
	assert.Nil(t, pool.Book(models.ServiceScan, "u1", ""))
}

func TestBook_Persistence(t *testing.T) {
	pinClock(t, "2025-01-01T00:00:00Z")
	path := filepath.Join(t.TempDir(), "out", "bookings.json")
	pool := NewPool(DefaultSeed)

	first := pool.Book(models.ServiceVO2Test, "u1", path)
	require.NotNil(t, first)
	second := pool.Book(models.ServiceVO2Test, "u1", path)
	require.NotNil(t, second)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted []models.Appointment
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 2)
	assert.Equal(t, first.BookingID, persisted[0].BookingID)
	assert.Equal(t, second.BookingID, persisted[1].BookingID)
}

func TestBook_PersistenceToleratesCorruptFile(t *testing.T) {
	pinClock(t, "2025-01-01T00:00:00Z")
	path := filepath.Join(t.TempDir(), "bookings.json")
	require.NoError(t, os.WriteFile(path, []byte("{ not json"), 0o644))

	pool := NewPool(DefaultSeed)
	appt := pool.Book(models.ServiceVO2Test, "u1", path)
	require.NotNil(t, appt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted []models.Appointment
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, appt.BookingID, persisted[0].BookingID)
}
