package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
)

const (
	// DefaultMaxRetries is the HTTP retry budget for one validation request.
	DefaultMaxRetries = 2
	// DefaultTimeout bounds a single HTTP attempt and a semaphore acquire.
	DefaultTimeout = 12 * time.Second
	// concurrencyLimit caps in-flight validation requests process-wide per
	// client, so parallel benchmark runs do not hammer the endpoint.
	concurrencyLimit = 5

	retryBackoffBase   = 500 * time.Millisecond
	acquireBackoffBase = 250 * time.Millisecond
)

// sleepFn is stubbed in tests to skip backoff waits.
var sleepFn = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client talks to the claim-validation endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	maxRetries int
	timeout    time.Duration
	sem        *semaphore.Weighted
}

// NewClient creates a validation client for url. A zero timeout falls back to
// DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: DefaultMaxRetries,
		timeout:    timeout,
		sem:        semaphore.NewWeighted(concurrencyLimit),
	}
}

type batchClaim struct {
	Text      string         `json:"text"`
	Context   string         `json:"context"`
	TurnIndex int            `json:"turn_index"`
	Speaker   models.Speaker `json:"speaker"`
}

type batchPayload struct {
	Mode   string       `json:"mode"`
	Claims []batchClaim `json:"claims"`
}

type singlePayload struct {
	Claim   string `json:"claim"`
	Context string `json:"context"`
}

type resultItem struct {
	Validity   string  `json:"validity"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// Validate checks claims through the concurrency gate: it tries to acquire
// the in-flight permit for up to the client timeout, backing off
// exponentially between attempts. When the permit cannot be acquired at all,
// the batch is sent anyway with no HTTP retries rather than dropping the
// claims.
func (c *Client) Validate(ctx context.Context, claims []models.Claim) []models.ClaimValidation {
	if len(claims) == 0 {
		return nil
	}
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.acquire(ctx); err != nil {
			if sleepErr := sleepFn(ctx, acquireBackoffBase<<attempt); sleepErr != nil {
				break
			}
			continue
		}
		results := c.validateBatch(ctx, claims, c.maxRetries)
		c.sem.Release(1)
		return results
	}
	slog.Warn("Validation concurrency permit unavailable, bypassing gate", "claims", len(claims))
	return c.validateBatch(ctx, claims, 0)
}

func (c *Client) acquire(ctx context.Context) error {
	acquireCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.sem.Acquire(acquireCtx, 1)
}

// ValidateBatch sends one batch-mode request and maps the positional results
// back onto the claims. Transport failures and HTTP >= 400 yield unknown
// verdicts with server_unavailable set for every claim.
func (c *Client) ValidateBatch(ctx context.Context, claims []models.Claim) []models.ClaimValidation {
	return c.validateBatch(ctx, claims, c.maxRetries)
}

func (c *Client) validateBatch(ctx context.Context, claims []models.Claim, maxRetries int) []models.ClaimValidation {
	if len(claims) == 0 {
		return nil
	}
	payload := batchPayload{Mode: "batch", Claims: make([]batchClaim, 0, len(claims))}
	for _, cl := range claims {
		payload.Claims = append(payload.Claims, batchClaim{
			Text:      cl.Text,
			Context:   claimContext(cl),
			TurnIndex: cl.TurnIndex,
			Speaker:   cl.Speaker,
		})
	}

	body, err := c.postWithRetries(ctx, payload, maxRetries)
	if err != nil {
		slog.Warn("Claim validation request failed", "claims", len(claims), "error", err)
		return unknownAll(claims)
	}

	items, err := decodeResults(body)
	if err != nil {
		slog.Warn("Claim validation response unreadable", "error", err)
		return unknownAll(claims)
	}

	results := make([]models.ClaimValidation, 0, len(claims))
	for i, cl := range claims {
		if i >= len(items) {
			// Positional padding for a short response.
			results = append(results, unknown(cl, false))
			continue
		}
		results = append(results, decodeItem(cl, items[i]))
	}
	return results
}

// ValidateSingle sends one claim in single mode. Used by ad-hoc checks
// outside the batched tool path.
func (c *Client) ValidateSingle(ctx context.Context, claim models.Claim) models.ClaimValidation {
	body, err := c.postWithRetries(ctx, singlePayload{Claim: claim.Text, Context: claimContext(claim)}, c.maxRetries)
	if err != nil {
		return unknown(claim, true)
	}
	return decodeItem(claim, body)
}

// postWithRetries POSTs payload, retrying transport errors and HTTP >= 400
// with a linear 0.5s * attempt backoff.
func (c *Client) postWithRetries(ctx context.Context, payload any, maxRetries int) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal validation payload: %w", err)
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepFn(ctx, retryBackoffBase*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
		body, err := c.post(ctx, data)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build validation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("validation endpoint returned status %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read validation response: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeResults accepts either a bare JSON array or {"results": [...]}.
func decodeResults(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var wrapper struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Results, nil
}

// decodeItem maps one response item onto a verdict, normalizing validity to
// the closed {true, false, unknown} set.
func decodeItem(claim models.Claim, raw json.RawMessage) models.ClaimValidation {
	var item resultItem
	if err := json.Unmarshal(raw, &item); err != nil {
		v := unknown(claim, false)
		v.RawResponse = raw
		return v
	}
	validity := strings.ToLower(item.Validity)
	switch validity {
	case models.VerdictTrue, models.VerdictFalse, models.VerdictUnknown:
	default:
		validity = models.VerdictUnknown
	}
	return models.ClaimValidation{
		Claim:       claim,
		Validity:    validity,
		Confidence:  item.Confidence,
		Evidence:    item.Evidence,
		RawResponse: raw,
	}
}

func claimContext(c models.Claim) string {
	return c.ContextBefore + "\n" + c.ContextAfter
}

func unknown(claim models.Claim, serverUnavailable bool) models.ClaimValidation {
	return models.ClaimValidation{
		Claim:             claim,
		Validity:          models.VerdictUnknown,
		ServerUnavailable: serverUnavailable,
	}
}

func unknownAll(claims []models.Claim) []models.ClaimValidation {
	out := make([]models.ClaimValidation, 0, len(claims))
	for _, c := range claims {
		out = append(out, unknown(c, true))
	}
	return out
}
