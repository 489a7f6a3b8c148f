// Package plan defines the FinalPlan schema the planner must produce, the
// lenient parser used on final-phase output, canonical hashing for
// cross-run consistency scoring, and the deterministic fallback synthesis.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	playvalidator "github.com/go-playground/validator/v10"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

// Evidence flags attached to plan items.
const (
	EvidenceOK      = "ok"
	EvidenceLow     = "low"
	EvidenceUnknown = "unknown"
)

// FixedDisclaimers must appear in every plan.
var FixedDisclaimers = []string{
	"This plan is educational and not medical advice.",
	"Discuss all interventions with a licensed clinician.",
}

// Item is one plan entry: either a lifestyle action (category sleep, movement,
// nutrition, stress) or an appointment-backed service entry where Category
// holds the service label.
type Item struct {
	Month        int                 `json:"month" validate:"required,min=1,max=6"`
	Category     string              `json:"category,omitempty"`
	Action       string              `json:"action,omitempty"`
	Rationale    string              `json:"rationale,omitempty"`
	Appointment  *models.Appointment `json:"appointment,omitempty"`
	EvidenceFlag string              `json:"evidence_flag,omitempty" validate:"omitempty,oneof=ok low unknown"`
	Evidence     string              `json:"evidence,omitempty"`
}

// FinalPlan is the negotiated 6-month longevity plan.
type FinalPlan struct {
	UserName    string   `json:"user_name" validate:"required"`
	FocusArea   string   `json:"focus_area,omitempty"`
	TotalCost   float64  `json:"total_cost" validate:"min=0"`
	Items       []Item   `json:"items" validate:"required,min=1,dive"`
	Warnings    []string `json:"warnings,omitempty"`
	Disclaimers []string `json:"disclaimers"`
}

var validate = playvalidator.New()

// Validate checks the plan against the schema constraints.
func (p *FinalPlan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("plan schema validation failed: %w", err)
	}
	return nil
}

// Normalize enforces the plan invariants in place: the two fixed disclaimers
// are present, and total_cost equals the sum of appointment prices, each
// counted exactly once.
func (p *FinalPlan) Normalize() {
	for _, fixed := range FixedDisclaimers {
		found := false
		for _, d := range p.Disclaimers {
			if d == fixed {
				found = true
				break
			}
		}
		if !found {
			p.Disclaimers = append(p.Disclaimers, fixed)
		}
	}

	total := 0.0
	for _, item := range p.Items {
		if item.Appointment != nil {
			total += item.Appointment.Price
		}
	}
	p.TotalCost = math.Round(total*100) / 100
}

// Parse extracts a FinalPlan from agent text. It tolerates markdown code
// fences and surrounding prose by parsing the outermost JSON object, then
// validates and normalizes the result.
func Parse(text string) (*FinalPlan, error) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in text")
	}
	var p FinalPlan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// extractJSON returns the outermost {...} span of text, stripping any
// markdown fences first.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			text = rest[:j]
		} else {
			text = rest
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// Hash returns the SHA-256 hex digest of the plan's canonical JSON form
// (object keys sorted). Two semantically equal plans hash identically.
func (p *FinalPlan) Hash() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan: %w", err)
	}
	// Round-trip through a generic value so encoding/json emits sorted keys.
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("failed to canonicalize plan: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical plan: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// RenderText produces the human-readable summary artifact.
func (p *FinalPlan) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LONGEVITY PLAN SUMMARY for %s\n", p.UserName)
	fmt.Fprintf(&b, "Total Cost (est.): $%.2f\n\n", p.TotalCost)
	b.WriteString("Appointments:\n")
	for _, item := range p.Items {
		appt := item.Appointment
		if appt == nil {
			continue
		}
		label := item.Category
		if label == "" {
			label = appt.ServiceType
		}
		fmt.Fprintf(&b, "- M%d: %s @ %s (%s, %s) $%.2f [evidence: %s]\n",
			item.Month, label, appt.StartISO, appt.StaffRole, appt.Location, appt.Price, item.EvidenceFlag)
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range p.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	b.WriteString("\nDisclaimers:\n")
	for _, d := range p.Disclaimers {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	return b.String()
}
