// Package orchestrator drives the phased two-agent negotiation: it walks the
// fixed phase sequence, hands each turn to the responsible agent through the
// resilience layer, executes emitted tool calls, harvests claims into shared
// memory, and captures the structured final plan (falling back to the
// deterministic plan when capture fails).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lifeplan-ai/lifeplan/pkg/agent"
	"github.com/lifeplan-ai/lifeplan/pkg/chaos"
	"github.com/lifeplan-ai/lifeplan/pkg/config"
	"github.com/lifeplan-ai/lifeplan/pkg/llm"
	"github.com/lifeplan-ai/lifeplan/pkg/memory"
	"github.com/lifeplan-ai/lifeplan/pkg/models"
	"github.com/lifeplan-ai/lifeplan/pkg/plan"
	"github.com/lifeplan-ai/lifeplan/pkg/resilience"
	"github.com/lifeplan-ai/lifeplan/pkg/run"
	"github.com/lifeplan-ai/lifeplan/pkg/tools"
	"github.com/lifeplan-ai/lifeplan/pkg/validator"
)

// maxToolIterations bounds the call-tool-then-reinvoke loop within one turn.
const maxToolIterations = 5

// Runner executes one full conversation run.
type Runner struct {
	cfg    config.Config
	client llm.Client
	chaos  *chaos.Injector
}

// NewRunner wires a runner from its dependencies. The chaos injector is
// shared across runs so the benchmark can refresh it between scenarios.
func NewRunner(cfg config.Config, client llm.Client, inj *chaos.Injector) *Runner {
	return &Runner{cfg: cfg, client: client, chaos: inj}
}

// Result summarizes one finished run.
type Result struct {
	RunID      string   `json:"run_id"`
	Success    bool     `json:"success"`
	FellBack   bool     `json:"fell_back"`
	LatencyMS  float64  `json:"latency_ms"`
	OutputsDir string   `json:"outputs_dir"`
	Mode       string   `json:"mode"`
	Errors     []string `json:"errors,omitempty"`

	Plan *plan.FinalPlan `json:"-"`
}

// Run drives the full phase sequence and persists all artifacts. It returns
// an error only when the run could not start (bad inputs, no run directory);
// failures mid-conversation degrade to fallback synthesis instead.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	user, err := agent.LoadUserProfile(r.cfg.UserProfilePath)
	if err != nil {
		return nil, err
	}
	clinic, err := agent.LoadClinicResource(r.cfg.ClinicResourcePath)
	if err != nil {
		return nil, err
	}
	store, err := run.NewStore(r.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	mem := memory.New()
	mem.AddFact("user_name", user.Name)
	mem.AddFact("goals", user.Goals)

	telemetry := run.NewTelemetry()
	var vclient *validator.Client
	if r.cfg.EnableValidation {
		vclient = validator.NewClient(r.cfg.ValidatorURL, r.cfg.ValidatorTimeout)
	}
	registry := &tools.Registry{
		Validator:        vclient,
		ValidatorTimeout: r.cfg.ValidatorTimeout,
		Chaos:            r.chaos,
		Memory:           mem,
		Telemetry:        telemetry,
		BookingsPath:     store.Path(run.FileBookings),
	}

	profiles := agent.BuildProfiles(user, clinic)
	router := agent.ModelRouter{SmallModel: r.cfg.SmallModel, BigModel: r.cfg.BigModel}

	var errs []string
	seed := agent.SeedMessage(user)
	lastText := seed
	if err := store.AppendTranscript(models.AdvocateName + ": " + seed); err != nil {
		errs = append(errs, err.Error())
	}

	var captured *plan.FinalPlan
	for idx, step := range models.PhaseSequence() {
		if idx >= r.cfg.TurnLimit {
			break
		}

		text, structured, err := r.turn(ctx, turnInput{
			phase:    step.Phase,
			speaker:  step.Speaker,
			lastText: lastText,
			profiles: profiles,
			router:   router,
			turn:     idx,
			mem:      mem,
			registry: registry,
			user:     user,
			tel:      telemetry,
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", step.Phase, err))
			telemetry.Record(models.TelemetryRecord{
				Type:    models.TelemetryError,
				Phase:   step.Phase,
				Speaker: step.Speaker,
				Message: err.Error(),
			})
			continue
		}

		if claims := validator.ExtractClaims(text, idx, step.Speaker); len(claims) > 0 {
			for _, c := range claims {
				mem.AddClaim(c)
			}
			telemetry.Record(models.TelemetryRecord{
				Type:    models.TelemetryMemoryUpdate,
				Phase:   step.Phase,
				Speaker: step.Speaker,
				Count:   len(claims),
			})
		}

		lastText = text
		if err := store.AppendTranscript(step.Speaker.DisplayName() + ": " + text); err != nil {
			errs = append(errs, err.Error())
		}

		// Scheduling fallback: when the planner described services without
		// calling the tool, book the mentioned ones directly.
		if step.Phase == models.PhaseScheduling && len(mem.Appointments()) == 0 {
			if services := tools.DetectRequestedServices(text); len(services) > 0 {
				args, _ := json.Marshal(map[string]any{"services": services, "user_id": user.UserID()})
				if _, err := registry.Execute(ctx, tools.Invocation{Caller: step.Speaker, UserID: user.UserID()},
					llm.ToolCall{ID: "scheduling-fallback", Name: tools.ToolScheduleServices, Arguments: args}); err != nil {
					errs = append(errs, err.Error())
				}
			}
		}

		if step.Phase.CapturesPlan() {
			if p := capturePlan(text, structured); p != nil {
				captured = p
				break
			}
		}
	}

	// Sweep claims the agents never validated through the tool.
	if vclient != nil {
		if pending := mem.UnvalidatedClaims(); len(pending) > 0 {
			for _, v := range vclient.Validate(ctx, pending) {
				mem.AddValidation(v)
			}
		}
	}

	final := captured
	if final == nil {
		final = plan.Fallback(user, mem.Validations(), store.Path(run.FileBookings))
	}

	r.persist(store, final, mem, telemetry, &errs)

	status := run.StatusSuccess
	if len(final.Warnings) > 0 {
		status = run.StatusWarning
	}
	if captured == nil && len(errs) > 0 {
		status = run.StatusFailed
	}
	if err := run.UpdateIndex(r.cfg.OutputDir, run.IndexEntry{
		RunID:      store.RunID(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		User:       final.UserName,
		Status:     status,
		OutputsDir: store.Dir(),
	}); err != nil {
		errs = append(errs, err.Error())
	}

	return &Result{
		RunID:      store.RunID(),
		Success:    final != nil,
		FellBack:   captured == nil,
		LatencyMS:  float64(time.Since(start)) / float64(time.Millisecond),
		OutputsDir: store.Dir(),
		Mode:       r.cfg.Mode,
		Errors:     errs,
		Plan:       final,
	}, nil
}

type turnInput struct {
	phase    models.Phase
	speaker  models.Speaker
	lastText string
	profiles agent.Profiles
	router   agent.ModelRouter
	turn     int
	mem      *memory.SharedMemory
	registry *tools.Registry
	user     models.UserProfile
	tel      *run.Telemetry
}

// turn runs one phase: prompt the responsible agent, drain its tool calls,
// and return the final (possibly chaos-corrupted) text plus any
// structured-output attachment.
func (r *Runner) turn(ctx context.Context, in turnInput) (string, json.RawMessage, error) {
	t0 := time.Now()

	hint := fmt.Sprintf("[phase] %s | [shared_memory] %s", in.phase, in.mem.RenderBrief())
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: in.lastText},
		{Role: llm.RoleUser, Content: hint},
	}
	system := agent.GuardPrompt(in.profiles.BySpeaker(in.speaker).System, agent.CheckContextHealth(messages))

	req := &llm.Request{
		Model:       r.chooseModel(in),
		System:      system,
		Messages:    messages,
		Tools:       in.registry.Definitions(),
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}

	resp, err := r.invoke(ctx, req)
	if err != nil {
		return "", nil, err
	}

	inv := tools.Invocation{Caller: in.speaker, UserID: in.user.UserID()}
	for i := 0; i < maxToolIterations && len(resp.ToolCalls) > 0; i++ {
		req.Messages = append(req.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			out, terr := in.registry.Execute(ctx, inv, tc)
			msg := llm.Message{Role: llm.RoleTool, Content: out, ToolCallID: tc.ID}
			if terr != nil {
				msg.Content = terr.Error()
				msg.ToolIsError = true
			}
			req.Messages = append(req.Messages, msg)
		}
		if resp, err = r.invoke(ctx, req); err != nil {
			return "", nil, err
		}
	}

	in.tel.Record(models.TelemetryRecord{
		Type:     models.TelemetryTurn,
		Phase:    in.phase,
		Speaker:  in.speaker,
		LatencyS: time.Since(t0).Seconds(),
	})
	return r.chaos.MaybeCorruptLLMOutput(resp.Text), resp.StructuredOutput, nil
}

// capturePlan tries the structured-output attachment first, then lenient
// JSON parsing of the turn text. Both paths schema-validate and normalize.
func capturePlan(text string, structured json.RawMessage) *plan.FinalPlan {
	if len(structured) > 0 {
		var p plan.FinalPlan
		if err := json.Unmarshal(structured, &p); err == nil && p.Validate() == nil {
			p.Normalize()
			return &p
		}
	}
	p, err := plan.Parse(text)
	if err != nil {
		return nil
	}
	return p
}

func (r *Runner) invoke(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, meta, err := resilience.LLMCall(ctx, r.chaos, func(ctx context.Context) (*llm.Response, error) {
		return r.client.Chat(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if meta.HardFailure {
		return nil, fmt.Errorf("llm call failed after %d retries: %s", meta.Retries, meta.LastError)
	}
	return resp, nil
}

// chooseModel routes through small/big models in optimized mode when both are
// configured; otherwise the configured model handles every turn.
func (r *Runner) chooseModel(in turnInput) string {
	if r.cfg.Mode != config.ModeOptimized || in.router.SmallModel == "" || in.router.BigModel == "" {
		return r.cfg.EffectiveModel()
	}
	taskType := ""
	if in.phase == models.PhaseFinalPlan {
		taskType = agent.TaskPlanSynthesis
	}
	return in.router.ChooseModel(taskType, in.turn, in.speaker)
}

// persist writes the end-of-run artifacts. Failures are collected, never fatal.
func (r *Runner) persist(store *run.Store, final *plan.FinalPlan, mem *memory.SharedMemory, tel *run.Telemetry, errs *[]string) {
	save := func(err error) {
		if err != nil {
			slog.Warn("Failed to persist run artifact", "error", err)
			*errs = append(*errs, err.Error())
		}
	}
	save(store.SaveJSON(run.FileFinalPlan, final))
	save(store.SaveJSON(run.FileSummaryJSON, final))
	save(store.SaveText(run.FileSummaryText, final.RenderText()))
	save(store.SaveJSON(run.FileValidations, validationsJSON(mem.Validations())))
	save(store.SaveJSON(run.FileTelemetry, tel.Records()))
	save(store.WriteManifest())
}

// validationsJSON flattens verdicts into the persisted artifact shape.
func validationsJSON(validations []models.ClaimValidation) []map[string]any {
	out := make([]map[string]any, 0, len(validations))
	for _, v := range validations {
		out = append(out, map[string]any{
			"claim":              v.Claim.Text,
			"speaker":            v.Claim.Speaker,
			"turn_index":         v.Claim.TurnIndex,
			"validity":           v.Validity,
			"confidence":         v.Confidence,
			"evidence":           v.Evidence,
			"server_unavailable": v.ServerUnavailable,
		})
	}
	return out
}
