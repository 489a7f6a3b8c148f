// lifeplan runs the two-agent longevity plan negotiation: a single
// conversation by default, or a parallel benchmark with --parallel.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lifeplan-ai/lifeplan/pkg/bench"
	"github.com/lifeplan-ai/lifeplan/pkg/chaos"
	"github.com/lifeplan-ai/lifeplan/pkg/config"
	"github.com/lifeplan-ai/lifeplan/pkg/llm/provider"
	"github.com/lifeplan-ai/lifeplan/pkg/orchestrator"
	"github.com/lifeplan-ai/lifeplan/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "Path to optional YAML config file")
	turnLimit := flag.Int("turn-limit", 0, "Maximum number of conversation turns")
	model := flag.String("model", "", "Model name (provider detected from prefix)")
	smallModel := flag.String("small-model", "", "Small model for frugal routing in optimized mode")
	bigModel := flag.String("big-model", "", "Big model for synthesis turns in optimized mode")
	validatorURL := flag.String("validator-url", "", "Claim validation endpoint URL")
	enableValidation := flag.Bool("enable-validation", false, "Validate extracted scientific claims")
	userProfile := flag.String("user-profile", "", "Path to the user profile JSON")
	clinicResource := flag.String("clinic-resource", "", "Path to the clinic resource text")
	outputDir := flag.String("output-dir", "", "Directory for run artifacts")
	mode := flag.String("mode", "", "Run mode: baseline or optimized")
	useMock := flag.Bool("use-mock", false, "Use the deterministic mock model (offline)")
	parallel := flag.Bool("parallel", false, "Run the parallel benchmark instead of a single conversation")
	runs := flag.Int("runs", 5, "Benchmark: number of runs")
	concurrency := flag.Int("concurrency", 2, "Benchmark: concurrent runs")
	scenario := flag.String("scenario", "", "Benchmark: chaos scenario label")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Merge(config.Config{
		TurnLimit:          *turnLimit,
		Model:              *model,
		SmallModel:         *smallModel,
		BigModel:           *bigModel,
		ValidatorURL:       *validatorURL,
		EnableValidation:   *enableValidation,
		UserProfilePath:    *userProfile,
		ClinicResourcePath: *clinicResource,
		OutputDir:          *outputDir,
		Mode:               *mode,
		UseMock:            *useMock,
	}); err != nil {
		slog.Error("Failed to apply flag overrides", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := config.EnsureProviderReady(cfg.EffectiveModel()); err != nil {
		slog.Error("Provider not ready", "error", err)
		os.Exit(1)
	}

	client, err := provider.New(cfg.EffectiveModel())
	if err != nil {
		slog.Error("Failed to create model client", "error", err)
		os.Exit(1)
	}
	inj := chaos.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting lifeplan",
		"version", version.Full(),
		"model", cfg.EffectiveModel(),
		"mode", cfg.Mode,
		"turn_limit", cfg.TurnLimit,
		"validation", cfg.EnableValidation,
		"chaos", inj.Config().Enabled,
		"parallel", *parallel)

	start := time.Now()
	var payload any
	if *parallel {
		summary, err := bench.NewHarness(cfg, client, inj).Run(ctx, bench.Options{
			Scenario:    *scenario,
			NumRuns:     *runs,
			Concurrency: *concurrency,
		})
		if err != nil {
			slog.Error("Benchmark failed", "error", err)
			os.Exit(1)
		}
		payload = summary
	} else {
		result, err := orchestrator.NewRunner(cfg, client, inj).Run(ctx)
		if err != nil {
			slog.Error("Run failed", "error", err)
			os.Exit(1)
		}
		payload = result
	}
	slog.Info("Finished", "elapsed", time.Since(start).Round(time.Millisecond))

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		slog.Error("Failed to render summary", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
