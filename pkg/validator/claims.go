// Package validator extracts scientific-sounding claims from agent turns and
// checks them against an external validation endpoint. All validation entry
// points degrade to "unknown" verdicts rather than failing the conversation.
package validator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

// minClaimLength filters out short sentences unlikely to carry a testable
// claim.
const minClaimLength = 40

// claimPattern matches action-outcome verbs and claim markers.
var claimPattern = regexp.MustCompile(`(?i)reduces|improves|increases|lowers|risk|mortality|biomarker|studies?\s+show|clinical\s+trial|proven`)

// ExtractClaims scans text for sentences that look like scientific claims:
// at least 40 characters and matching an action-outcome keyword. Neighboring
// sentences are attached as context for the validation endpoint.
func ExtractClaims(text string, turnIndex int, speaker models.Speaker) []models.Claim {
	sentences := splitSentences(text)
	var claims []models.Claim
	for i, s := range sentences {
		if len(s) < minClaimLength || !claimPattern.MatchString(s) {
			continue
		}
		claim := models.Claim{
			Text:      s,
			TurnIndex: turnIndex,
			Speaker:   speaker,
		}
		if i > 0 {
			claim.ContextBefore = sentences[i-1]
		}
		if i+1 < len(sentences) {
			claim.ContextAfter = sentences[i+1]
		}
		claims = append(claims, claim)
	}
	return claims
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace. The terminator stays with its sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
