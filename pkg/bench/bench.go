// Package bench runs many conversations in parallel under an optional chaos
// scenario and aggregates latency, success, and plan-consistency metrics into
// a JSON report.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/lifeplan-ai/lifeplan/pkg/chaos"
	"github.com/lifeplan-ai/lifeplan/pkg/config"
	"github.com/lifeplan-ai/lifeplan/pkg/llm"
	"github.com/lifeplan-ai/lifeplan/pkg/orchestrator"
)

var timeNow = time.Now

// Options controls one benchmark invocation.
type Options struct {
	Scenario    string
	NumRuns     int
	Concurrency int
}

// RunRecord is the per-run row of the report.
type RunRecord struct {
	RunID      string   `json:"run_id"`
	Scenario   string   `json:"scenario,omitempty"`
	Success    bool     `json:"success"`
	FellBack   bool     `json:"fell_back"`
	LatencyMS  float64  `json:"latency_ms"`
	OutputsDir string   `json:"outputs_dir,omitempty"`
	Errors     []string `json:"errors,omitempty"`

	planHash string
}

// Summary aggregates a finished benchmark.
type Summary struct {
	Scenario             string   `json:"scenario,omitempty"`
	Mode                 string   `json:"mode"`
	NumRuns              int      `json:"num_runs"`
	Concurrency          int      `json:"concurrency"`
	ElapsedS             float64  `json:"elapsed_s"`
	SuccessRate          float64  `json:"success_rate"`
	P50LatencyMS         float64  `json:"p50_latency_ms"`
	P95LatencyMS         float64  `json:"p95_latency_ms"`
	AvgLatencyMS         float64  `json:"avg_latency_ms"`
	ErrorCount           int      `json:"error_count"`
	ErrorsSample         []string `json:"errors_sample,omitempty"`
	PlanConsistencyScore float64  `json:"plan_consistency_score"`
	ReportPath           string   `json:"report_path,omitempty"`
}

// Harness executes benchmark runs. Each run builds its own orchestrator so
// state stays isolated; only the llm client and the chaos injector are shared.
type Harness struct {
	cfg    config.Config
	client llm.Client
	chaos  *chaos.Injector
}

// NewHarness wires a harness from its dependencies.
func NewHarness(cfg config.Config, client llm.Client, inj *chaos.Injector) *Harness {
	return &Harness{cfg: cfg, client: client, chaos: inj}
}

// Run refreshes the chaos config, executes NumRuns conversations at the given
// concurrency, writes the report JSON, and returns the summary.
func (h *Harness) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.NumRuns <= 0 {
		opts.NumRuns = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	h.chaos.Refresh()

	records := make([]RunRecord, opts.NumRuns)
	start := timeNow()

	var wg sync.WaitGroup
	jobs := make(chan int)
	stopCh := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(stopCh) }) }
	defer stop()

	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopCh:
					return
				case idx, ok := <-jobs:
					if !ok {
						return
					}
					records[idx] = h.one(ctx, idx, opts.Scenario)
				}
			}
		}()
	}
	for i := 0; i < opts.NumRuns; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			stop()
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	summary := h.summarize(records, opts, time.Since(start).Seconds())
	path, err := h.writeReport(opts, summary, records)
	if err != nil {
		return summary, err
	}
	summary.ReportPath = path
	return summary, nil
}

func (h *Harness) one(ctx context.Context, idx int, scenario string) RunRecord {
	runner := orchestrator.NewRunner(h.cfg, h.client, h.chaos)
	res, err := runner.Run(ctx)
	if err != nil {
		return RunRecord{
			RunID:    fmt.Sprintf("error_%d", idx),
			Scenario: scenario,
			Errors:   []string{err.Error()},
		}
	}
	rec := RunRecord{
		RunID:      res.RunID,
		Scenario:   scenario,
		Success:    res.Success,
		FellBack:   res.FellBack,
		LatencyMS:  res.LatencyMS,
		OutputsDir: res.OutputsDir,
		Errors:     res.Errors,
	}
	if res.Plan != nil {
		if hash, err := res.Plan.Hash(); err == nil {
			rec.planHash = hash
		}
	}
	return rec
}

func (h *Harness) summarize(records []RunRecord, opts Options, elapsed float64) *Summary {
	var latencies []float64
	var hashes []string
	successes := 0
	errorCount := 0
	var errorsSample []string
	for _, r := range records {
		if r.Success {
			successes++
		}
		latencies = append(latencies, r.LatencyMS)
		if len(r.Errors) > 0 {
			errorCount++
			if len(errorsSample) < 5 {
				errorsSample = append(errorsSample, r.Errors[0])
			}
		}
		if r.planHash != "" {
			hashes = append(hashes, r.planHash)
		}
	}

	avg := 0.0
	for _, l := range latencies {
		avg += l
	}
	if len(latencies) > 0 {
		avg /= float64(len(latencies))
	}

	return &Summary{
		Scenario:             opts.Scenario,
		Mode:                 h.cfg.Mode,
		NumRuns:              opts.NumRuns,
		Concurrency:          opts.Concurrency,
		ElapsedS:             math.Round(elapsed*1000) / 1000,
		SuccessRate:          math.Round(float64(successes)/float64(len(records))*1000) / 1000,
		P50LatencyMS:         percentile(latencies, 50),
		P95LatencyMS:         percentile(latencies, 95),
		AvgLatencyMS:         math.Round(avg),
		ErrorCount:           errorCount,
		ErrorsSample:         errorsSample,
		PlanConsistencyScore: consistencyScore(hashes),
	}
}

// percentile returns sorted[round((p/100)·(n-1))], clamped to the slice.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	ordered := append([]float64(nil), values...)
	sort.Float64s(ordered)
	idx := int(math.Round(p / 100 * float64(len(ordered)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > len(ordered)-1 {
		idx = len(ordered) - 1
	}
	return ordered[idx]
}

// consistencyScore is the fraction of plans matching the modal canonical
// hash. Ties break toward the hash seen first.
func consistencyScore(hashes []string) float64 {
	if len(hashes) == 0 {
		return 0
	}
	counts := make(map[string]int, len(hashes))
	best := 0
	for _, hsh := range hashes {
		counts[hsh]++
		if counts[hsh] > best {
			best = counts[hsh]
		}
	}
	return math.Round(float64(best)/float64(len(hashes))*1000) / 1000
}

// writeReport saves the full benchmark payload under {output}/tests/.
// Chaos scenarios are named chaos_{scenario}_{ts}.json, plain parallel runs
// parallel_test_{mode}_{ts}.json.
func (h *Harness) writeReport(opts Options, summary *Summary, records []RunRecord) (string, error) {
	dir := filepath.Join(h.cfg.OutputDir, "tests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	ts := timeNow().UTC().Format("20060102_150405")
	name := fmt.Sprintf("parallel_test_%s_%s.json", h.cfg.Mode, ts)
	if opts.Scenario != "" {
		name = fmt.Sprintf("chaos_%s_%s.json", opts.Scenario, ts)
	}
	path := filepath.Join(dir, name)

	payload := map[string]any{
		"scenario":     opts.Scenario,
		"chaos_config": h.chaos.Config(),
		"summary":      summary,
		"runs":         records,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
