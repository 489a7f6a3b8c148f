// Package memory holds the per-run shared memory both agents read through the
// prompt hint line: key facts, extracted claims, validation verdicts, booked
// appointments, and recorded decisions.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

// SharedMemory is append-only apart from fact overwrites. Safe for concurrent
// use; within a run the phase loop is the only writer.
type SharedMemory struct {
	mu           sync.Mutex
	facts        map[string]any
	factKeys     []string
	claims       []models.Claim
	validations  []models.ClaimValidation
	validated    map[string]struct{}
	appointments []models.Appointment
	decisions    []string
}

// New creates an empty shared memory.
func New() *SharedMemory {
	return &SharedMemory{
		facts:     make(map[string]any),
		validated: make(map[string]struct{}),
	}
}

// AddFact records a key fact. Re-adding a key overwrites its value but keeps
// its original position in the brief.
func (m *SharedMemory) AddFact(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.facts[key]; !exists {
		m.factKeys = append(m.factKeys, key)
	}
	m.facts[key] = value
}

// AddClaim appends an extracted claim.
func (m *SharedMemory) AddClaim(c models.Claim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = append(m.claims, c)
}

// AddValidation appends a validator verdict and marks its claim text as
// validated.
func (m *SharedMemory) AddValidation(v models.ClaimValidation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations = append(m.validations, v)
	m.validated[claimKey(v.Claim.Text)] = struct{}{}
}

// AddAppointment appends a booked appointment.
func (m *SharedMemory) AddAppointment(a models.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments = append(m.appointments, a)
}

// AddDecision appends a free-form decision note.
func (m *SharedMemory) AddDecision(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, text)
}

// Fact returns the value recorded for key, if any.
func (m *SharedMemory) Fact(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.facts[key]
	return v, ok
}

// Claims returns a snapshot of all extracted claims.
func (m *SharedMemory) Claims() []models.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Claim, len(m.claims))
	copy(out, m.claims)
	return out
}

// Validations returns a snapshot of all verdicts.
func (m *SharedMemory) Validations() []models.ClaimValidation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ClaimValidation, len(m.validations))
	copy(out, m.validations)
	return out
}

// Appointments returns a snapshot of all booked appointments.
func (m *SharedMemory) Appointments() []models.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Appointment, len(m.appointments))
	copy(out, m.appointments)
	return out
}

// Decisions returns a snapshot of all recorded decisions.
func (m *SharedMemory) Decisions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// UnvalidatedClaims returns claims whose text carries no verdict yet.
// Matching is by claim text: an agent validating a statement through the
// tool covers the extracted claim with the same wording, while tool
// verdicts on unrelated statements leave extracted claims pending.
func (m *SharedMemory) UnvalidatedClaims() []models.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.claims {
		if _, ok := m.validated[claimKey(c.Text)]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// claimKey normalizes claim text for verdict matching.
func claimKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// RenderBrief summarizes memory in one line for the per-turn prompt hint.
// Sections with no content are omitted; an empty memory renders "(empty)".
func (m *SharedMemory) RenderBrief() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var parts []string
	if len(m.factKeys) > 0 {
		parts = append(parts, fmt.Sprintf("facts: [%s]", strings.Join(m.factKeys, ", ")))
	}
	if n := len(m.appointments); n > 0 {
		recent := m.appointments[max(0, n-3):]
		names := make([]string, len(recent))
		for i, a := range recent {
			names[i] = a.ServiceType
		}
		parts = append(parts, fmt.Sprintf("recent_appointments: [%s]", strings.Join(names, ", ")))
	}
	if len(m.claims) > 0 {
		parts = append(parts, fmt.Sprintf("claims_collected: %d", len(m.claims)))
	}
	if len(m.validations) > 0 {
		ok := 0
		for _, v := range m.validations {
			if v.Validity == models.VerdictTrue {
				ok++
			}
		}
		parts = append(parts, fmt.Sprintf("validated_true: %d/%d", ok, len(m.validations)))
	}
	if n := len(m.decisions); n > 0 {
		parts = append(parts, fmt.Sprintf("decisions: [%s]", strings.Join(m.decisions[max(0, n-2):], ", ")))
	}
	if len(parts) == 0 {
		return "(empty)"
	}
	return strings.Join(parts, " | ")
}
