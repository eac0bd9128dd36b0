package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// Remote defaults.
const (
	DefaultRemoteEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultRemoteModel    = "text-embedding-004"
	DefaultMinDelay       = time.Second
	DefaultMaxJitter      = 250 * time.Millisecond
	DefaultMaxWait        = 30 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// RemoteConfig configures a RemoteEmbedder.
type RemoteConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int

	// MinDelay is the minimum spacing between requests; MaxJitter adds a
	// random extra pause. A request that would wait longer than MaxWait for
	// its turn fails with ERR_302_RATE_LIMITED.
	MinDelay  time.Duration
	MaxJitter time.Duration
	MaxWait   time.Duration

	// Timeout bounds a single HTTP request.
	Timeout time.Duration
	Retry   mserrors.RetryConfig

	// Governor tracks quota cooldowns. Nil creates one with defaults.
	Governor   *QuotaGovernor
	HTTPClient *http.Client
}

// RemoteEmbedder calls a hosted embedding API. Requests are spaced by a
// minimum delay plus jitter and gated by a QuotaGovernor.
type RemoteEmbedder struct {
	cfg      RemoteConfig
	client   *http.Client
	limiter  *rate.Limiter
	governor *QuotaGovernor
	jitter   func(max time.Duration) time.Duration

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Provider = (*RemoteEmbedder)(nil)

// NewRemoteEmbedder creates a remote embedder. It does not contact the
// service.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRemoteEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultRemoteDimensions
	}
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = mserrors.DefaultRetryConfig()
	}
	if cfg.Governor == nil {
		cfg.Governor = NewQuotaGovernor(cfg.Model)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		}}
	}

	limit := rate.Inf
	if cfg.MinDelay > 0 {
		limit = rate.Every(cfg.MinDelay)
	}

	return &RemoteEmbedder{
		cfg:      cfg,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		governor: cfg.Governor,
		jitter:   randomJitter,
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

// Configured reports whether an API key is set.
func (e *RemoteEmbedder) Configured() bool {
	return e.cfg.APIKey != ""
}

// Governor returns the quota governor.
func (e *RemoteEmbedder) Governor() *QuotaGovernor {
	return e.governor
}

// Embed implements Provider.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.cfg.Dimensions), nil
	}

	// Every attempt, retries included, passes the gate.
	var gateErr error
	vec, err := mserrors.RetryWithResult(ctx, e.cfg.Retry, func() ([]float32, error) {
		if err := e.admit(ctx); err != nil {
			gateErr = err
			return nil, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		return e.doEmbed(attemptCtx, text)
	})
	if gateErr != nil {
		return nil, gateErr
	}
	if err != nil {
		return nil, e.classify(err)
	}
	e.governor.RecordSuccess()
	return vec, nil
}

// EmbedBatch implements Provider. Items run one by one; the batch stops at
// the first quota or rate-limit failure and returns what succeeded.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var failures int
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err == nil {
			results[i] = vec
			continue
		}
		switch mserrors.GetCode(err) {
		case mserrors.ErrCodeQuotaExceeded, mserrors.ErrCodeRateLimited, mserrors.ErrCodeProviderUnavailable:
			slog.Warn("remote_batch_stopped",
				slog.String("model", e.cfg.Model),
				slog.Int("completed", i-failures),
				slog.Int("total", len(texts)),
				slog.String("error", err.Error()))
			return results, err
		}
		if ctx.Err() != nil {
			return results, mserrors.New(mserrors.ErrCodeProviderTimeout, "remote batch interrupted", ctx.Err())
		}
		failures++
		slog.Debug("remote_item_failed", slog.Int("index", i), slog.String("error", err.Error()))
	}
	return results, nil
}

// admit lets one request through: the quota governor must allow it and the
// minimum-delay gate must open within MaxWait. Its errors are final for the
// current Embed call.
func (e *RemoteEmbedder) admit(ctx context.Context) error {
	if err := e.governor.Allow(); err != nil {
		return err
	}
	if err := e.wait(ctx); err != nil {
		var se *mserrors.SearchError
		if mserrors.As(err, &se) {
			se.Retryable = false
		}
		return err
	}
	return nil
}

// wait applies the minimum-delay gate and jitter.
func (e *RemoteEmbedder) wait(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.MaxWait)
	defer cancel()
	if err := e.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return mserrors.New(mserrors.ErrCodeProviderTimeout, "cancelled waiting for request slot", ctx.Err())
		}
		return mserrors.New(mserrors.ErrCodeRateLimited,
			fmt.Sprintf("request slot not available within %s", e.cfg.MaxWait), err)
	}

	if d := e.jitter(e.cfg.MaxJitter); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return mserrors.New(mserrors.ErrCodeProviderTimeout, "cancelled during jitter", ctx.Err())
		case <-t.C:
		}
	}
	return nil
}

// doEmbed performs one HTTP request and maps the response to an error class.
// Transient failures use ERR_304_PROVIDER_TIMEOUT so the retry loop repeats
// them; everything else stops it.
func (e *RemoteEmbedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedContentRequest{
		Content:              contentBody{Parts: []contentPart{{Text: text}}},
		OutputDimensionality: e.cfg.Dimensions,
	})
	if err != nil {
		return nil, mserrors.InternalError("failed to marshal request", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent", e.cfg.Endpoint, url.PathEscape(e.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, mserrors.ProviderError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, mserrors.New(mserrors.ErrCodeProviderTimeout, "embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, respBody)
	}

	var result embedContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, mserrors.New(mserrors.ErrCodeInvalidResponse, "failed to decode embedding response", err)
	}
	if result.Embedding == nil || len(result.Embedding.Values) == 0 {
		return nil, mserrors.New(mserrors.ErrCodeInvalidResponse, "response has no embedding values", nil)
	}
	if len(result.Embedding.Values) != e.cfg.Dimensions {
		return nil, mserrors.New(mserrors.ErrCodeInvalidResponse,
			fmt.Sprintf("expected %d dimensions, got %d", e.cfg.Dimensions, len(result.Embedding.Values)), nil)
	}
	return result.Embedding.Values, nil
}

// statusError maps a non-200 reply to a structured error.
func statusError(status int, body []byte) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	detail := fmt.Sprintf("status %d: %s", status, msg)

	switch {
	case status == http.StatusTooManyRequests || isQuotaBody(apiErr.Error.Status, body):
		return mserrors.New(mserrors.ErrCodeQuotaExceeded, "embedding quota exhausted", fmt.Errorf("%s", detail))
	case status >= 500:
		return mserrors.New(mserrors.ErrCodeProviderTimeout, "embedding service error", fmt.Errorf("%s", detail))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return mserrors.ProviderError("embedding request rejected", fmt.Errorf("%s", detail)).
			WithSuggestion("Check embeddings.remote.api_key or MAILSEARCH_REMOTE_API_KEY")
	default:
		return mserrors.New(mserrors.ErrCodeInvalidResponse, "embedding request failed", fmt.Errorf("%s", detail))
	}
}

func isQuotaBody(status string, body []byte) bool {
	if status == "RESOURCE_EXHAUSTED" {
		return true
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "resource_exhausted") || strings.Contains(lower, "quota")
}

// classify turns the result of the retry loop into the caller-facing error
// and updates the governor.
func (e *RemoteEmbedder) classify(err error) error {
	switch mserrors.GetCode(err) {
	case mserrors.ErrCodeQuotaExceeded:
		e.governor.RecordQuotaFailure()
		return err
	case mserrors.ErrCodeInvalidResponse, mserrors.ErrCodeProviderUnavailable, mserrors.ErrCodeRateLimited:
		return err
	default:
		return mserrors.ProviderError("embedding service unavailable", err).
			WithDetail("model", e.cfg.Model)
	}
}

func (e *RemoteEmbedder) ready() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return mserrors.ProviderError("remote embedder is closed", nil)
	}
	if !e.Configured() {
		return mserrors.ProviderError("remote embedder has no API key", nil).
			WithSuggestion("Set embeddings.remote.api_key or MAILSEARCH_REMOTE_API_KEY")
	}
	return nil
}

// Available implements Provider. It does not contact the service.
func (e *RemoteEmbedder) Available(context.Context) bool {
	return e.ready() == nil && e.governor.Available()
}

// Dimensions implements Provider.
func (e *RemoteEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Name implements Provider.
func (e *RemoteEmbedder) Name() string {
	return e.cfg.Model
}

// Close implements Provider.
func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.client.CloseIdleConnections()
	}
	return nil
}
