package run

import (
	"sync"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

// Telemetry is an in-memory, concurrency-safe telemetry buffer for one run.
// It satisfies the tool registry's Recorder interface.
type Telemetry struct {
	mu      sync.Mutex
	records []models.TelemetryRecord
}

// NewTelemetry returns an empty buffer.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// Record appends one record.
func (t *Telemetry) Record(rec models.TelemetryRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
}

// Records returns a snapshot of all records so far.
func (t *Telemetry) Records() []models.TelemetryRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.TelemetryRecord, len(t.records))
	copy(out, t.records)
	return out
}
