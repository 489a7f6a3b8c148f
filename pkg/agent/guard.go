package agent

import "github.com/lifeplan-ai/lifeplan/pkg/llm"

// ContextHealth is the result of a heuristic conversation-state check.
type ContextHealth struct {
	OK     bool
	Reason string
}

// CheckContextHealth inspects the message window before an agent turn.
// An empty history is the one failure mode detected today.
func CheckContextHealth(messages []llm.Message) ContextHealth {
	if len(messages) == 0 {
		return ContextHealth{OK: false, Reason: "empty_history"}
	}
	return ContextHealth{OK: true}
}

// GuardPrompt prepends recovery instructions to the system prompt when the
// context is unhealthy, so the agent re-establishes alignment instead of
// making scheduling decisions on a corrupted window.
func GuardPrompt(base string, health ContextHealth) string {
	if health.OK {
		return base
	}
	reason := health.Reason
	if reason == "" {
		reason = "unknown"
	}
	recovery := "[CONTEXT WARNING]\n" +
		"The conversation history appears incomplete or corrupted (" + reason + ").\n" +
		"Before proceeding, briefly restate the current understanding of the user's goals and the tentative plan,\n" +
		"then ask the other agent to confirm or correct this. Avoid new irreversible scheduling decisions until alignment is restored.\n\n"
	return recovery + base
}
