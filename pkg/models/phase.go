package models

// Phase is one element of the fixed ordered conversation state list.
// Each phase has exactly one responsible speaker.
type Phase string

const (
	PhaseStart        Phase = "Start"
	PhaseIntake       Phase = "Intake"
	PhasePlanDraft    Phase = "PlanDraft"
	PhasePlanReview   Phase = "PlanReview"
	PhaseAudit        Phase = "Audit"
	PhaseRevision     Phase = "Revision"
	PhaseFinalPlan    Phase = "FinalPlan"
	PhaseScheduling   Phase = "Scheduling"
	PhaseFinalSummary Phase = "FinalSummary"
)

// PhaseStep pairs a phase with its responsible speaker.
type PhaseStep struct {
	Phase   Phase
	Speaker Speaker
}

// PhaseSequence returns the ordered phase list driven by the orchestrator.
// The advocate opens with a seed message in Start; FinalSummary is terminal.
func PhaseSequence() []PhaseStep {
	return []PhaseStep{
		{PhaseStart, SpeakerAdvocate},
		{PhaseIntake, SpeakerAdvocate},
		{PhasePlanDraft, SpeakerPlanner},
		{PhasePlanReview, SpeakerAdvocate},
		{PhaseAudit, SpeakerPlanner},
		{PhaseRevision, SpeakerAdvocate},
		{PhaseFinalPlan, SpeakerPlanner},
		{PhaseScheduling, SpeakerPlanner},
		{PhaseFinalSummary, SpeakerAdvocate},
	}
}

// CapturesPlan reports whether the orchestrator should attempt structured
// FinalPlan extraction from this phase's output.
func (p Phase) CapturesPlan() bool {
	return p == PhaseFinalPlan || p == PhaseFinalSummary
}
