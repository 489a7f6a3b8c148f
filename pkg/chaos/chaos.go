// Package chaos injects latency jitter, simulated failures, and LLM output
// corruption at the network and tool boundaries. All hooks are strict no-ops
// when chaos mode is disabled.
package chaos

import (
	"errors"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"time"
)

// ErrNetwork is a simulated network failure (timeouts, dropped connections).
var ErrNetwork = errors.New("chaos: simulated network failure")

// ErrTool is a simulated tool-level failure (HTTP 500, malformed response).
var ErrTool = errors.New("chaos: simulated tool failure")

// IsChaos reports whether err originated from a chaos hook.
func IsChaos(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTool)
}

// Config holds the chaos parameters, loaded from the environment.
type Config struct {
	Enabled          bool
	JitterMinMS      int
	JitterMaxMS      int
	NetworkFailProb  float64
	ToolFailProb     float64
	BadLLMOutputProb float64
}

// ConfigFromEnv reads the CHAOS_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		Enabled:          os.Getenv("CHAOS_MODE") == "1",
		JitterMinMS:      envInt("CHAOS_JITTER_MIN_MS", 200),
		JitterMaxMS:      envInt("CHAOS_JITTER_MAX_MS", 1000),
		NetworkFailProb:  envFloat("CHAOS_NET_FAIL_PROB", 0),
		ToolFailProb:     envFloat("CHAOS_TOOL_FAIL_PROB", 0),
		BadLLMOutputProb: envFloat("CHAOS_LLM_BAD_OUTPUT_PROB", 0),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Injector applies chaos according to its current config. Safe for use from
// multiple runs concurrently; the config snapshot is only replaced by Refresh.
type Injector struct {
	mu    sync.Mutex
	cfg   Config
	rng   *rand.Rand
	sleep func(time.Duration)
}

// NewInjector creates an injector with the given config and a time-seeded RNG.
func NewInjector(cfg Config) *Injector {
	return &Injector{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
}

// FromEnv creates an injector configured from the environment.
func FromEnv() *Injector {
	return NewInjector(ConfigFromEnv())
}

// Refresh re-reads the chaos environment variables. Called by the benchmark
// harness between invocations, never mid-run.
func (i *Injector) Refresh() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cfg = ConfigFromEnv()
}

// Config returns the current config snapshot.
func (i *Injector) Config() Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

// ApplyNetworkChaos sleeps a uniform-random jitter, then fails with ErrNetwork
// with the configured probability.
func (i *Injector) ApplyNetworkChaos() error {
	i.mu.Lock()
	cfg := i.cfg
	if !cfg.Enabled {
		i.mu.Unlock()
		return nil
	}
	span := cfg.JitterMaxMS - cfg.JitterMinMS
	delay := cfg.JitterMinMS
	if span > 0 {
		delay += i.rng.IntN(span + 1)
	}
	fail := i.rng.Float64() < cfg.NetworkFailProb
	sleep := i.sleep
	i.mu.Unlock()

	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(time.Duration(delay) * time.Millisecond)
	if fail {
		return ErrNetwork
	}
	return nil
}

// ApplyToolChaos fails with ErrTool with the configured probability.
// Tool wrappers call this before ApplyNetworkChaos so tool failures dominate.
func (i *Injector) ApplyToolChaos() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.cfg.Enabled {
		return nil
	}
	if i.rng.Float64() < i.cfg.ToolFailProb {
		return ErrTool
	}
	return nil
}

// MaybeCorruptLLMOutput returns text unchanged unless chaos decides to corrupt
// it, in which case one of three corruptions is chosen uniformly: empty string,
// a malformed JSON fragment, or truncation to half length.
func (i *Injector) MaybeCorruptLLMOutput(text string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.cfg.Enabled {
		return text
	}
	if i.rng.Float64() >= i.cfg.BadLLMOutputProb {
		return text
	}
	switch i.rng.IntN(3) {
	case 0:
		return ""
	case 1:
		return "{ not: valid json"
	default:
		// Truncate on a rune boundary so corrupted text stays valid UTF-8.
		runes := []rune(text)
		return string(runes[:len(runes)/2])
	}
}
