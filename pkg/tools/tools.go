// Package tools exposes the two agent-callable tools, validate_claims and
// schedule_services, behind a registry that decodes typed arguments, applies
// chaos and resilience, and records tool telemetry. Caller attribution is
// carried per invocation so parallel runs never share a mutable tag.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lifeplan-ai/lifeplan/pkg/chaos"
	"github.com/lifeplan-ai/lifeplan/pkg/llm"
	"github.com/lifeplan-ai/lifeplan/pkg/memory"
	"github.com/lifeplan-ai/lifeplan/pkg/models"
	"github.com/lifeplan-ai/lifeplan/pkg/resilience"
	"github.com/lifeplan-ai/lifeplan/pkg/scheduler"
	"github.com/lifeplan-ai/lifeplan/pkg/validator"
)

// Tool names advertised to the model.
const (
	ToolValidateClaims   = "validate_claims"
	ToolScheduleServices = "schedule_services"
)

// Recorder receives telemetry records from tool executions.
type Recorder interface {
	Record(rec models.TelemetryRecord)
}

// Registry owns the per-run tool dependencies.
type Registry struct {
	Validator        *validator.Client
	ValidatorTimeout time.Duration
	Chaos            *chaos.Injector
	Memory           *memory.SharedMemory
	Telemetry        Recorder
	BookingsPath     string
}

// Invocation carries the per-call attribution: which agent triggered the tool
// and which user bookings belong to when the model omits user_id.
type Invocation struct {
	Caller models.Speaker
	UserID string
}

type validateClaimsArgs struct {
	Claims  []string `json:"claims"`
	Context string   `json:"context,omitempty"`
	URL     string   `json:"url,omitempty"`
}

type scheduleArgs struct {
	Services []string `json:"services"`
	UserID   string   `json:"user_id,omitempty"`
}

type validationResult struct {
	Claim             string  `json:"claim"`
	Validity          string  `json:"validity"`
	Confidence        float64 `json:"confidence"`
	Evidence          string  `json:"evidence,omitempty"`
	ServerUnavailable bool    `json:"server_unavailable"`
}

// Definitions returns the tool schemas advertised to the model.
func (r *Registry) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name: ToolValidateClaims,
			Description: "Validate scientific-sounding claims for longevity/lifestyle against the validation endpoint. " +
				"Input: claims (list of strings). Output: list of {claim, validity, confidence, evidence, server_unavailable}.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"claims":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Claim sentences to validate"},
					"context": map[string]any{"type": "string", "description": "Optional surrounding context for the claims"},
					"url":     map[string]any{"type": "string", "description": "Override validation endpoint URL"},
				},
				"required": []string{"claims"},
			},
		},
		{
			Name: ToolScheduleServices,
			Description: "Schedule requested clinic services into deterministic slots. " +
				"Returns a list of appointments with timestamps, staff role, and price.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"services": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Services to book, e.g. baseline_bloodwork, vo2_test"},
					"user_id":  map[string]any{"type": "string", "description": "User identifier for the booking hash"},
				},
				"required": []string{"services"},
			},
		},
	}
}

// Execute runs one tool call and returns its JSON result for the model.
func (r *Registry) Execute(ctx context.Context, inv Invocation, call llm.ToolCall) (string, error) {
	switch call.Name {
	case ToolValidateClaims:
		return r.validateClaims(ctx, inv, call.Arguments)
	case ToolScheduleServices:
		return r.scheduleServices(ctx, inv, call.Arguments)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (r *Registry) validateClaims(ctx context.Context, inv Invocation, rawArgs json.RawMessage) (string, error) {
	var args validateClaimsArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return "", fmt.Errorf("invalid validate_claims arguments: %w", err)
	}
	client := r.Validator
	if args.URL != "" {
		client = validator.NewClient(args.URL, r.ValidatorTimeout)
	}
	if client == nil {
		return "", fmt.Errorf("claim validation is disabled")
	}

	claims := make([]models.Claim, 0, len(args.Claims))
	for _, text := range args.Claims {
		claims = append(claims, models.Claim{
			Text:          text,
			Speaker:       models.SpeakerPlanner,
			ContextBefore: args.Context,
		})
	}

	start := time.Now()
	results, meta, err := resilience.ToolCall(ctx, r.Chaos, func(ctx context.Context) ([]models.ClaimValidation, error) {
		return client.Validate(ctx, claims), nil
	})
	latency := time.Since(start).Seconds()
	if err != nil {
		return "", err
	}
	if meta.HardFailure {
		return "", fmt.Errorf("validate_claims failed after %d retries: %s", meta.Retries, meta.LastError)
	}

	payload := make([]validationResult, 0, len(results))
	for _, v := range results {
		if r.Memory != nil {
			r.Memory.AddValidation(v)
		}
		payload = append(payload, validationResult{
			Claim:             v.Claim.Text,
			Validity:          v.Validity,
			Confidence:        v.Confidence,
			Evidence:          v.Evidence,
			ServerUnavailable: v.ServerUnavailable,
		})
	}
	r.record(models.TelemetryRecord{
		Type:     models.TelemetryTool,
		Name:     ToolValidateClaims,
		Caller:   inv.Caller,
		Count:    len(results),
		LatencyS: latency,
	})
	return marshalResult(payload)
}

func (r *Registry) scheduleServices(_ context.Context, inv Invocation, rawArgs json.RawMessage) (string, error) {
	var args scheduleArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return "", fmt.Errorf("invalid schedule_services arguments: %w", err)
	}
	userID := args.UserID
	if userID == "" {
		userID = inv.UserID
	}
	if userID == "" {
		userID = "user"
	}

	start := time.Now()
	pool := scheduler.NewPool(scheduler.DefaultSeed)
	booked := make([]models.Appointment, 0, len(args.Services))
	for _, svc := range args.Services {
		if err := r.Chaos.ApplyToolChaos(); err != nil {
			slog.Debug("Skipping service after injected tool failure", "service", svc, "error", err)
			continue
		}
		if len(pool.FindAvailable(svc, nil)) == 0 {
			continue
		}
		appt := pool.Book(svc, userID, r.BookingsPath)
		if appt == nil {
			continue
		}
		if r.Memory != nil {
			r.Memory.AddAppointment(*appt)
		}
		booked = append(booked, *appt)
	}
	r.record(models.TelemetryRecord{
		Type:      models.TelemetryTool,
		Name:      ToolScheduleServices,
		Caller:    inv.Caller,
		Requested: args.Services,
		Booked:    len(booked),
		LatencyS:  time.Since(start).Seconds(),
	})
	return marshalResult(booked)
}

func (r *Registry) record(rec models.TelemetryRecord) {
	if r.Telemetry != nil {
		r.Telemetry.Record(rec)
	}
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return string(data), nil
}

// DetectRequestedServices scans planner text for service mentions, preserving
// first-mention order without duplicates.
func DetectRequestedServices(text string) []string {
	lower := strings.ToLower(text)
	var services []string
	if strings.Contains(lower, "bloodwork") {
		services = append(services, models.ServiceBaselineBloodwork)
	}
	if strings.Contains(lower, "vo2") || strings.Contains(lower, "vo₂") {
		services = append(services, models.ServiceVO2Test)
	}
	if strings.Contains(lower, "scan") {
		services = append(services, models.ServiceScan)
	}
	if strings.Contains(lower, "coach") || strings.Contains(lower, "coaching") {
		services = append(services, models.ServiceLifestyleCoaching)
	}
	return services
}
