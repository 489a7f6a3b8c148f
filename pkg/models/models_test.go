package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfile_UserID(t *testing.T) {
	tests := []struct {
		name    string
		profile UserProfile
		want    string
	}{
		{name: "explicit id wins", profile: UserProfile{ID: "u1", Name: "Ada"}, want: "u1"},
		{name: "falls back to name", profile: UserProfile{Name: "Ada"}, want: "Ada"},
		{name: "empty profile", profile: UserProfile{}, want: "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.UserID())
		})
	}
}

func TestUserProfile_BudgetBounds(t *testing.T) {
	tests := []struct {
		name     string
		budget   string
		wantMin  float64
		wantMax  float64
		wantOK   bool
	}{
		{name: "plain range", budget: "500-1500", wantMin: 500, wantMax: 1500, wantOK: true},
		{name: "dollar signs and spaces", budget: "$500 - $1500", wantMin: 500, wantMax: 1500, wantOK: true},
		{name: "missing", budget: "", wantOK: false},
		{name: "not a range", budget: "flexible", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max, ok := UserProfile{Budget: tt.budget}.BudgetBounds()
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantMin, min)
				assert.Equal(t, tt.wantMax, max)
			}
		})
	}
}

func TestPhaseSequence(t *testing.T) {
	seq := PhaseSequence()
	require.Len(t, seq, 9)
	assert.Equal(t, PhaseStart, seq[0].Phase)
	assert.Equal(t, SpeakerAdvocate, seq[0].Speaker)
	assert.Equal(t, PhaseFinalSummary, seq[len(seq)-1].Phase)

	// Plan capture is attempted only in the two closing phases.
	for _, step := range seq {
		capture := step.Phase == PhaseFinalPlan || step.Phase == PhaseFinalSummary
		assert.Equal(t, capture, step.Phase.CapturesPlan(), "phase %s", step.Phase)
	}
}

func TestSpeakerDisplayName(t *testing.T) {
	assert.Equal(t, AdvocateName, SpeakerAdvocate.DisplayName())
	assert.Equal(t, PlannerName, SpeakerPlanner.DisplayName())
}
