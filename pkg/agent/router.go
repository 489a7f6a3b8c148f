package agent

import (
	"strings"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

// Task types the router recognizes.
const (
	TaskChitchat         = "chitchat"
	TaskAck              = "ack"
	TaskConfirmation     = "confirmation"
	TaskPlanSynthesis    = "plan_synthesis"
	TaskComplexReasoning = "complex_reasoning"
)

// ModelRouter routes turns frugally between a small and a big model.
type ModelRouter struct {
	SmallModel string
	BigModel   string
}

// ChooseModel picks a model for one turn. Light task types always take the
// small model; the planner gets the big model every third turn for synthesis,
// as do explicitly heavy task types.
func (r ModelRouter) ChooseModel(taskType string, turnIndex int, speaker models.Speaker) string {
	switch strings.ToLower(taskType) {
	case TaskChitchat, TaskAck, TaskConfirmation:
		return r.SmallModel
	}
	if speaker == models.SpeakerPlanner && turnIndex%3 == 0 {
		return r.BigModel
	}
	switch strings.ToLower(taskType) {
	case TaskPlanSynthesis, TaskComplexReasoning:
		return r.BigModel
	}
	return r.SmallModel
}
