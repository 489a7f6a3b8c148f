package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeplan-ai/lifeplan/pkg/chaos"
	"github.com/lifeplan-ai/lifeplan/pkg/llm"
	"github.com/lifeplan-ai/lifeplan/pkg/memory"
	"github.com/lifeplan-ai/lifeplan/pkg/models"
	"github.com/lifeplan-ai/lifeplan/pkg/validator"
)

type recorderStub struct {
	mu      sync.Mutex
	records []models.TelemetryRecord
}

func (r *recorderStub) Record(rec models.TelemetryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorderStub) all() []models.TelemetryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TelemetryRecord(nil), r.records...)
}

func newTestRegistry(t *testing.T, validatorURL string) (*Registry, *recorderStub) {
	t.Helper()
	rec := &recorderStub{}
	reg := &Registry{
		Chaos:            chaos.NewInjector(chaos.Config{}),
		Memory:           memory.New(),
		Telemetry:        rec,
		ValidatorTimeout: 5 * time.Second,
		BookingsPath:     "",
	}
	if validatorURL != "" {
		reg.Validator = validator.NewClient(validatorURL, 5*time.Second)
	}
	return reg, rec
}

func toolCall(t *testing.T, name string, args any) llm.ToolCall {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return llm.ToolCall{ID: "call_1", Name: name, Arguments: raw}
}

func TestDefinitions(t *testing.T) {
	reg := &Registry{}
	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, ToolValidateClaims, defs[0].Name)
	assert.Equal(t, ToolScheduleServices, defs[1].Name)
	for _, def := range defs {
		assert.NotEmpty(t, def.Description)
		assert.Equal(t, "object", def.InputSchema["type"])
		assert.NotEmpty(t, def.InputSchema["required"])
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	reg, _ := newTestRegistry(t, "")
	_, err := reg.Execute(context.Background(), Invocation{}, llm.ToolCall{Name: "delete_everything"})
	assert.ErrorContains(t, err, "unknown tool")
}

func TestValidateClaims(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "batch", req["mode"])
		assert.Len(t, req["claims"], 2)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"validity": "TRUE", "confidence": 0.9, "evidence": "Meta-analysis support."},
			{"validity": "false", "confidence": 0.7},
		})
	}))
	defer server.Close()

	reg, rec := newTestRegistry(t, server.URL)
	inv := Invocation{Caller: models.SpeakerPlanner, UserID: "u1"}
	call := toolCall(t, ToolValidateClaims, map[string]any{
		"claims": []string{
			"Zone 2 training reduces all-cause mortality risk.",
			"Cryotherapy improves mitochondrial biomarker levels.",
		},
	})

	out, err := reg.Execute(context.Background(), inv, call)
	require.NoError(t, err)

	var results []validationResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, models.VerdictTrue, results[0].Validity)
	assert.Equal(t, 0.9, results[0].Confidence)
	assert.Equal(t, models.VerdictFalse, results[1].Validity)
	assert.False(t, results[0].ServerUnavailable)

	// Validations land in shared memory for later plan synthesis.
	assert.Len(t, reg.Memory.Validations(), 2)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.TelemetryTool, records[0].Type)
	assert.Equal(t, ToolValidateClaims, records[0].Name)
	assert.Equal(t, models.SpeakerPlanner, records[0].Caller)
	assert.Equal(t, 2, records[0].Count)
}

func TestValidateClaims_URLOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{"validity": "true", "confidence": 0.8}})
	}))
	defer server.Close()

	// No configured validator; the call supplies the endpoint itself.
	reg, _ := newTestRegistry(t, "")
	call := toolCall(t, ToolValidateClaims, map[string]any{
		"claims": []string{"Resistance training lowers fall risk in older adults."},
		"url":    server.URL,
	})
	out, err := reg.Execute(context.Background(), Invocation{Caller: models.SpeakerPlanner}, call)
	require.NoError(t, err)

	var results []validationResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, models.VerdictTrue, results[0].Validity)
}

func TestValidateClaims_Disabled(t *testing.T) {
	reg, _ := newTestRegistry(t, "")
	call := toolCall(t, ToolValidateClaims, map[string]any{"claims": []string{"anything"}})
	_, err := reg.Execute(context.Background(), Invocation{}, call)
	assert.ErrorContains(t, err, "disabled")
}

func TestValidateClaims_BadArguments(t *testing.T) {
	reg, _ := newTestRegistry(t, "")
	_, err := reg.Execute(context.Background(), Invocation{}, llm.ToolCall{
		Name:      ToolValidateClaims,
		Arguments: json.RawMessage(`{"claims": "not a list"}`),
	})
	assert.ErrorContains(t, err, "invalid validate_claims arguments")
}

func TestScheduleServices(t *testing.T) {
	reg, rec := newTestRegistry(t, "")
	inv := Invocation{Caller: models.SpeakerPlanner, UserID: "u1"}
	call := toolCall(t, ToolScheduleServices, map[string]any{
		"services": []string{models.ServiceVO2Test, models.ServiceBaselineBloodwork},
	})

	out, err := reg.Execute(context.Background(), inv, call)
	require.NoError(t, err)

	var booked []models.Appointment
	require.NoError(t, json.Unmarshal([]byte(out), &booked))
	require.Len(t, booked, 2)
	assert.Equal(t, models.ServiceVO2Test, booked[0].ServiceType)
	assert.Equal(t, models.ServiceBaselineBloodwork, booked[1].ServiceType)
	for _, appt := range booked {
		assert.Len(t, appt.BookingID, 10)
		assert.Equal(t, "Main Clinic", appt.Location)
	}

	assert.Len(t, reg.Memory.Appointments(), 2)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, ToolScheduleServices, records[0].Name)
	assert.Equal(t, models.SpeakerPlanner, records[0].Caller)
	assert.Equal(t, []string{models.ServiceVO2Test, models.ServiceBaselineBloodwork}, records[0].Requested)
	assert.Equal(t, 2, records[0].Booked)
}

func TestScheduleServices_FreshPoolPerCall(t *testing.T) {
	reg, _ := newTestRegistry(t, "")
	inv := Invocation{Caller: models.SpeakerPlanner, UserID: "u1"}
	call := toolCall(t, ToolScheduleServices, map[string]any{"services": []string{models.ServiceScan}})

	first, err := reg.Execute(context.Background(), inv, call)
	require.NoError(t, err)
	second, err := reg.Execute(context.Background(), inv, call)
	require.NoError(t, err)

	// Each invocation generates its own slot pool, so the same first slot is
	// returned both times.
	assert.Equal(t, first, second)
}

func TestScheduleServices_DefaultUserID(t *testing.T) {
	reg, _ := newTestRegistry(t, "")
	call := toolCall(t, ToolScheduleServices, map[string]any{"services": []string{models.ServiceVO2Test}})

	withInv, err := reg.Execute(context.Background(), Invocation{UserID: "alice"}, call)
	require.NoError(t, err)
	withoutInv, err := reg.Execute(context.Background(), Invocation{}, call)
	require.NoError(t, err)

	// Different user ids hash to different booking ids for the same slot.
	assert.NotEqual(t, withInv, withoutInv)
}

func TestScheduleServices_ChaosSkips(t *testing.T) {
	reg, rec := newTestRegistry(t, "")
	reg.Chaos = chaos.NewInjector(chaos.Config{Enabled: true, ToolFailProb: 1})
	call := toolCall(t, ToolScheduleServices, map[string]any{
		"services": []string{models.ServiceVO2Test, models.ServiceScan},
	})

	out, err := reg.Execute(context.Background(), Invocation{Caller: models.SpeakerPlanner}, call)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Empty(t, reg.Memory.Appointments())

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].Booked)
	assert.Len(t, records[0].Requested, 2)
}

func TestScheduleServices_UnknownService(t *testing.T) {
	reg, _ := newTestRegistry(t, "")
	call := toolCall(t, ToolScheduleServices, map[string]any{"services": []string{"cryotherapy"}})
	out, err := reg.Execute(context.Background(), Invocation{}, call)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestDetectRequestedServices(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "Sounds good to me."},
		{
			name: "all four",
			text: "Start with bloodwork, then a VO2 assessment, a DEXA scan, and monthly coaching.",
			want: []string{
				models.ServiceBaselineBloodwork,
				models.ServiceVO2Test,
				models.ServiceScan,
				models.ServiceLifestyleCoaching,
			},
		},
		{name: "case insensitive", text: "Let's book BLOODWORK first.", want: []string{models.ServiceBaselineBloodwork}},
		{name: "unicode vo2", text: "A VO₂ max test would help.", want: []string{models.ServiceVO2Test}},
		{name: "coach keyword", text: "Pair them with a coach for accountability.", want: []string{models.ServiceLifestyleCoaching}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectRequestedServices(tt.text))
		})
	}
}
