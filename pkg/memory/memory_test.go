package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

func TestRenderBrief_Empty(t *testing.T) {
	assert.Equal(t, "(empty)", New().RenderBrief())
}

func TestRenderBrief_Sections(t *testing.T) {
	m := New()
	m.AddFact("user_name", "Ada")
	m.AddFact("budget", "500-1500")
	m.AddClaim(models.Claim{Text: "claim one"})
	m.AddClaim(models.Claim{Text: "claim two"})
	m.AddValidation(models.ClaimValidation{Validity: models.VerdictTrue})
	m.AddValidation(models.ClaimValidation{Validity: models.VerdictUnknown})
	m.AddAppointment(models.Appointment{ServiceType: models.ServiceVO2Test})
	m.AddDecision("prefer mornings")

	brief := m.RenderBrief()
	assert.Equal(t,
		"facts: [user_name, budget] | recent_appointments: [vo2_test] | claims_collected: 2 | validated_true: 1/2 | decisions: [prefer mornings]",
		brief)
}

func TestRenderBrief_Windows(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.AddAppointment(models.Appointment{ServiceType: fmt.Sprintf("svc%d", i)})
		m.AddDecision(fmt.Sprintf("d%d", i))
	}
	brief := m.RenderBrief()
	assert.Contains(t, brief, "recent_appointments: [svc2, svc3, svc4]")
	assert.Contains(t, brief, "decisions: [d3, d4]")
}

func TestAddFact_OverwriteKeepsOrder(t *testing.T) {
	m := New()
	m.AddFact("a", 1)
	m.AddFact("b", 2)
	m.AddFact("a", 3)

	v, ok := m.Fact("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Contains(t, m.RenderBrief(), "facts: [a, b]")
}

func TestUnvalidatedClaims(t *testing.T) {
	m := New()
	texts := []string{"claim a", "claim b", "claim c", "claim d"}
	for i, text := range texts {
		m.AddClaim(models.Claim{Text: text, TurnIndex: i})
	}
	m.AddValidation(models.ClaimValidation{Claim: models.Claim{Text: "claim a"}})
	m.AddValidation(models.ClaimValidation{Claim: models.Claim{Text: "claim b"}})

	pending := m.UnvalidatedClaims()
	require.Len(t, pending, 2)
	assert.Equal(t, "claim c", pending[0].Text)
	assert.Equal(t, "claim d", pending[1].Text)

	m.AddValidation(models.ClaimValidation{Claim: models.Claim{Text: "claim c"}})
	m.AddValidation(models.ClaimValidation{Claim: models.Claim{Text: "claim d"}})
	assert.Empty(t, m.UnvalidatedClaims())
}

func TestUnvalidatedClaims_ToolVerdictsMatchByText(t *testing.T) {
	m := New()
	m.AddClaim(models.Claim{Text: "VO2 max training extends lifespan.", TurnIndex: 2, Speaker: models.SpeakerAdvocate})
	m.AddClaim(models.Claim{Text: "Sauna use lowers cardiovascular risk.", TurnIndex: 4, Speaker: models.SpeakerPlanner})

	// An agent checking its own statement through the tool: the verdict's
	// claim has no turn attribution but the same wording.
	m.AddValidation(models.ClaimValidation{
		Claim:    models.Claim{Text: "Sauna use lowers cardiovascular risk.", Speaker: models.SpeakerPlanner},
		Validity: models.VerdictTrue,
	})
	// A verdict on wording never extracted must not mask pending claims.
	m.AddValidation(models.ClaimValidation{
		Claim:    models.Claim{Text: "Cold plunges cure everything.", Speaker: models.SpeakerPlanner},
		Validity: models.VerdictFalse,
	})

	pending := m.UnvalidatedClaims()
	require.Len(t, pending, 1)
	assert.Equal(t, "VO2 max training extends lifespan.", pending[0].Text)
	assert.Equal(t, 2, pending[0].TurnIndex)
}

func TestSnapshotsAreCopies(t *testing.T) {
	m := New()
	m.AddClaim(models.Claim{Text: "original"})
	snapshot := m.Claims()
	snapshot[0].Text = "mutated"
	assert.Equal(t, "original", m.Claims()[0].Text)
}

func TestConcurrentWriters(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.AddClaim(models.Claim{TurnIndex: i})
			m.AddDecision("d")
			m.RenderBrief()
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Claims(), 10)
	assert.Len(t, m.Decisions(), 10)
}
