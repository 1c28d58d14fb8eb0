package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleetbooks/recon/internal/model"
)

// Task is the task name sent to the structured-output endpoint.
const Task = "bank_reconciliation_match"

// HTTPConfig configures an HTTPMatcher.
type HTTPConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	Timeout       time.Duration
	RatePerMinute int // 0 = unlimited
}

// HTTPMatcher asks a hosted model for suggestions through a
// structured-output endpoint: the request carries the input document and the
// schema the output must satisfy, the reply carries {"output": ...}.
type HTTPMatcher struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewHTTP creates an HTTPMatcher. A nil client uses http.DefaultClient.
func NewHTTP(cfg HTTPConfig, client *http.Client, log *zap.Logger) (*HTTPMatcher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("http matcher: endpoint is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return &HTTPMatcher{cfg: cfg, client: client, limiter: limiter, log: log}, nil
}

type httpRequest struct {
	Model  string          `json:"model,omitempty"`
	Task   string          `json:"task"`
	Input  WireInput       `json:"input"`
	Schema json.RawMessage `json:"schema"`
}

type httpResponse struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// Suggest implements Matcher.
func (m *HTTPMatcher) Suggest(ctx context.Context, req Request) ([]model.MatchSuggestion, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limit: %v", ErrUnavailable, err)
	}

	body, err := json.Marshal(httpRequest{
		Model:  m.cfg.Model,
		Task:   Task,
		Input:  ToWire(req),
		Schema: json.RawMessage(SuggestionSchema),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling matcher request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building matcher request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	start := time.Now()
	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	m.log.Debug("matcher responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(data)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(data))
	}

	var env httpResponse
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("%w: provider error: %s", ErrUnavailable, env.Error)
	}
	if len(env.Output) == 0 {
		return nil, fmt.Errorf("%w: missing output", ErrMalformedResponse)
	}
	return DecodeSuggestions(env.Output)
}
