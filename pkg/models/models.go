// Package models defines the typed entities shared across the longevity plan
// negotiation engine: user inputs, claims and their validations, scheduler
// slots and appointments, and the phase table for the two-agent dialogue.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Speaker identifies which of the two agents produced a turn or claim.
type Speaker string

const (
	SpeakerAdvocate Speaker = "advocate"
	SpeakerPlanner  Speaker = "planner"
)

// Display names used in transcripts and system prompts.
const (
	AdvocateName = "Health Advocate"
	PlannerName  = "Service Planner"
)

// DisplayName returns the transcript-facing name for a speaker.
func (s Speaker) DisplayName() string {
	if s == SpeakerPlanner {
		return PlannerName
	}
	return AdvocateName
}

// UserProfile is the immutable per-run description of the user the advocate
// represents.
type UserProfile struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Age           int      `json:"age,omitempty"`
	Goals         []string `json:"goals,omitempty"`
	Constraints   []string `json:"constraints,omitempty"`
	Budget        string   `json:"budget,omitempty"`
	Availability  []string `json:"availability,omitempty"`
	BlackoutDates []string `json:"blackout_dates,omitempty"`
}

// UserID returns the identifier used for booking hashes, falling back to the
// display name and then to "user".
func (u UserProfile) UserID() string {
	if u.ID != "" {
		return u.ID
	}
	if u.Name != "" {
		return u.Name
	}
	return "user"
}

// BudgetBounds parses a "min-max" budget string. ok is false when the field
// is absent or unparseable.
func (u UserProfile) BudgetBounds() (min, max float64, ok bool) {
	parts := strings.SplitN(u.Budget, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	min, errMin := parseAmount(parts[0])
	max, errMax := parseAmount(parts[1])
	if errMin != nil || errMax != nil {
		return 0, 0, false
	}
	return min, max, true
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	return strconv.ParseFloat(s, 64)
}

// Claim is a scientific-sounding sentence extracted from a turn.
type Claim struct {
	Text          string  `json:"text"`
	TurnIndex     int     `json:"turn_index"`
	Speaker       Speaker `json:"speaker"`
	ContextBefore string  `json:"context_before,omitempty"`
	ContextAfter  string  `json:"context_after,omitempty"`
}

// Verdict values produced by the claim validator.
const (
	VerdictTrue    = "true"
	VerdictFalse   = "false"
	VerdictUnknown = "unknown"
)

// ClaimValidation is the validator's verdict for one claim.
// Invariant: ServerUnavailable implies Validity == "unknown" and Confidence == 0.
type ClaimValidation struct {
	Claim             Claim           `json:"claim"`
	Validity          string          `json:"validity"`
	Confidence        float64         `json:"confidence"`
	Evidence          string          `json:"evidence,omitempty"`
	ServerUnavailable bool            `json:"server_unavailable"`
	RawResponse       json.RawMessage `json:"raw_response,omitempty"`
}

// Service types offered by the clinic scheduler. Closed set.
const (
	ServiceBaselineBloodwork = "baseline_bloodwork"
	ServiceVO2Test           = "vo2_test"
	ServiceScan              = "scan"
	ServiceLifestyleCoaching = "lifestyle_coaching"
)

// ServiceTypes lists all schedulable services in round-robin generation order.
func ServiceTypes() []string {
	return []string{
		ServiceBaselineBloodwork,
		ServiceVO2Test,
		ServiceScan,
		ServiceLifestyleCoaching,
	}
}

// Slot is a pre-generated, initially unbooked time window for one service.
// Once Booked flips to true it stays true for the pool's lifetime.
type Slot struct {
	ServiceType string  `json:"service_type"`
	StartISO    string  `json:"start_iso"`
	EndISO      string  `json:"end_iso"`
	StaffRole   string  `json:"staff_role"`
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	Booked      bool    `json:"booked"`
}

// Appointment is a booked slot with a stable booking id
// (first 10 hex chars of SHA-1 over "{user_id}-{start_iso}-{service_type}").
type Appointment struct {
	ServiceType string  `json:"service_type"`
	StartISO    string  `json:"start_iso"`
	EndISO      string  `json:"end_iso"`
	StaffRole   string  `json:"staff_role"`
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	BookingID   string  `json:"booking_id"`
}
