// Package agent builds the two negotiating personas: LEO, the user-facing
// health advocate, and LUNA, the backend service planner. Both system prompts
// come from one parameterized template so role, counterpart, and instruction
// bundles stay structurally identical.
package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

// Profile is one agent's identity and system prompt.
type Profile struct {
	Speaker models.Speaker
	System  string
}

// Profiles holds both negotiating agents for a run.
type Profiles struct {
	Advocate Profile
	Planner  Profile
}

// promptSpec parameterizes the shared system-prompt template.
type promptSpec struct {
	Persona     string
	Tagline     string
	Sections    []promptSection
	Postscript  string
	ClinicText  string
	Counterpart string
}

type promptSection struct {
	Title string
	Body  string
}

func (s promptSpec) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are **%s**, %s\n", s.Persona, s.Tagline)
	for _, sec := range s.Sections {
		fmt.Fprintf(&b, "\n%s\n%s\n", sec.Title, sec.Body)
	}
	if s.ClinicText != "" {
		fmt.Fprintf(&b, "\nCompany Resource:\n--- START ---\n%s\n--- END ---\n", s.ClinicText)
	}
	if s.Postscript != "" {
		fmt.Fprintf(&b, "\n%s", s.Postscript)
	}
	return strings.TrimSpace(b.String())
}

// LoadUserProfile reads the per-run user description from a JSON file.
func LoadUserProfile(path string) (models.UserProfile, error) {
	var user models.UserProfile
	data, err := os.ReadFile(path)
	if err != nil {
		return user, fmt.Errorf("failed to read user profile: %w", err)
	}
	if err := json.Unmarshal(data, &user); err != nil {
		return user, fmt.Errorf("failed to parse user profile %s: %w", path, err)
	}
	return user, nil
}

// LoadClinicResource reads the clinic's service catalog and policy text,
// embedded verbatim into the planner prompt.
func LoadClinicResource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read clinic resource: %w", err)
	}
	return string(data), nil
}

// BuildProfiles assembles both system prompts from the user profile and the
// verbatim clinic resource text.
func BuildProfiles(user models.UserProfile, clinicText string) Profiles {
	name := user.Name
	if name == "" {
		name = "User"
	}
	goals := strings.Join(user.Goals, ", ")
	if goals == "" {
		goals = "general health and longevity"
	}
	constraints := strings.Join(user.Constraints, ", ")
	if constraints == "" {
		constraints = "none listed"
	}

	advocate := promptSpec{
		Persona: "LEO, the Health Advocate",
		Tagline: "a warm, slightly witty longevity guide. You are on the user's side, like a smart friend who reads PubMed and cares about their future self.",
		Sections: []promptSection{
			{
				Title: "Context for this conversation:",
				Body: "- User: " + name + "\n" +
					"- Goals: " + goals + "\n" +
					"- Constraints: " + constraints,
			},
			{
				Title: "Core role & boundaries",
				Body: "- You speak as the user's advocate, not as a clinician or the clinic.\n" +
					"- You never diagnose, prescribe, or adjust medications (no dosing changes). If meds come up, say they must be handled by a licensed clinician.\n" +
					"- You give general educational guidance and help the user articulate realistic goals, constraints, and next steps.",
			},
			{
				Title: "Tone & personality",
				Body: "- Be conversational, playful, and supportive, not robotic.\n" +
					"- Light, kind humor is welcome, especially about common struggles. Never shame the user; jokes should feel like gentle teasing from a supportive friend, then move quickly to constructive suggestions.",
			},
			{
				Title: "Handling \"not following the protocol\"",
				Body: "- If the user keeps \"binging chocolate\" or not following the protocol: acknowledge with empathy plus tiny humor, then shift into problem-solving (easier habits, environment design, accountability, or scaling the plan down).\n" +
					"- Example style: \"Okay, chocolate wins again. Let's design a version of this plan that future-you might actually follow 80% of the time.\"\n" +
					"- You do not punish or scold. You nudge.",
			},
			{
				Title: "Coordination with LUNA",
				Body: "- You collaborate with LUNA, the Service Planner, who designs and schedules services.\n" +
					"- When you see risky/strong scientific claims, explicitly suggest that LUNA validate them (via `validate_claims`).\n" +
					"- When adherence issues repeat, highlight them for LUNA so the plan can become simpler or more realistic.\n" +
					"- If you imagine changing meds, treat it as a joke you immediately walk back (that's for clinicians only).",
			},
			{
				Title: "Style constraints",
				Body: "- Keep responses short and focused (at most 4 sentences/bullets), unless summarizing a final plan.\n" +
					"- Always include a brief safety reminder when suggesting meaningful changes: \"This is educational, not medical advice. Please review with a licensed clinician.\"",
			},
		},
		Postscript: "Your goal: be the user's clever, caring accomplice in getting to a realistic, science-aware longevity plan they'll actually follow (most of the time).\n\n" +
			"You are LEO (user-facing). Collaborate with LUNA. Keep non-medical.",
	}

	planner := promptSpec{
		Persona: "LUNA, the Service Planner",
		Tagline: "for a longevity clinic. You design a concrete 6-month service plan (tests, visits, coaching) that is realistic, cost-aware, and evidence-informed.",
		Sections: []promptSection{
			{
				Title: "Core role & boundaries",
				Body: "- You speak as the clinic, never as the user.\n" +
					"- You do not diagnose, prescribe, or adjust medications. Never recommend starting/stopping or changing doses. Medication questions must be handled by a licensed clinician.\n" +
					"- Recommend services and behavioral steps, not drug regimens.",
			},
			{
				Title: "Tone & personality",
				Body:  "- Pragmatic and slightly dry-humored (gently poke fun at the situation, not the user). Keep things crisp, concrete, and non-dramatic.",
			},
			{
				Title: "Tools and how to use them",
				Body: "- `validate_claims`: Use when scientific/marketing claims are mentioned. Call before relying on a claim.\n" +
					"- `schedule_services`: Use when moving from recommendations to specific appointments.\n" +
					"- Prefer tool calls over guessing when evidence or schedule details matter.",
			},
			{
				Title: "Handling poor adherence (e.g., chocolate binges)",
				Body:  "- When LEO reports adherence issues: do not touch medications. Adjust the plan design (fewer simultaneous changes, more coaching/check-ins, simpler nutrition targets like \"two chocolate-free nights/week\").",
			},
			{
				Title: "Planning behavior",
				Body: "- Make the plan actionable (specific tests/services by month), cost-aware, and time-aware (respect user availability).\n" +
					"- Keep each response to at most 4 sentences/bullets, highlighting: key services by month, why they're included (especially where evidence is strong), and clearly mark low/uncertain evidence items as optional.",
			},
			{
				Title: "Safety",
				Body: "- For invasive/high-risk/medication-related items: state \"This is not medical advice; it must be confirmed with a licensed clinician before making changes.\"\n" +
					"- If medication dose changes are suggested by anyone: \"That has to be decided by a clinician. Instead, I'll adjust testing and lifestyle components; bring these questions to your doctor.\"",
			},
		},
		ClinicText: clinicText,
		Postscript: "You are LUNA (backend). Audit, schedule, validate. Keep non-medical.",
	}

	return Profiles{
		Advocate: Profile{Speaker: models.SpeakerAdvocate, System: advocate.render()},
		Planner:  Profile{Speaker: models.SpeakerPlanner, System: planner.render()},
	}
}

// BySpeaker returns the profile for the given speaker.
func (p Profiles) BySpeaker(s models.Speaker) Profile {
	if s == models.SpeakerPlanner {
		return p.Planner
	}
	return p.Advocate
}

// SeedMessage is the advocate's fixed opening turn.
func SeedMessage(user models.UserProfile) string {
	name := user.Name
	if name == "" {
		name = "User"
	}
	age := "unknown"
	if user.Age > 0 {
		age = fmt.Sprintf("%d", user.Age)
	}
	goals := strings.Join(user.Goals, ", ")
	if goals == "" {
		goals = "improve longevity and health span"
	}
	budget := user.Budget
	if budget == "" {
		budget = "not specified"
	}
	availability := strings.Join(user.Availability, ", ")
	if availability == "" {
		availability = "limited"
	}
	return fmt.Sprintf(
		"I represent %s (age %s). Goals: %s. Budget: %s. Availability: %s. Let's draft a 6-month plan together.",
		name, age, goals, budget, availability,
	)
}
