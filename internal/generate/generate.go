// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate invokes a generative-model backend with timeout, retry
// with backoff on throttling, and an explicit transient/terminal failure
// split.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/pdiddy/medassist-engine/internal/logger"
	"github.com/pdiddy/medassist-engine/pkg/types"
)

// Defaults for the retry and timeout budget.
const (
	defaultMaxRetries = 1
	defaultBaseDelay  = 2000 * time.Millisecond
	defaultMaxDelay   = 15000 * time.Millisecond
	defaultTimeout    = 30000 * time.Millisecond
)

// randomJitter returns the random component added to each backoff delay.
// Tests override it to make delays deterministic.
var randomJitter = func() time.Duration {
	return time.Duration(rand.Int63n(int64(time.Second)))
}

// Options carries per-call context for backends that accept it.
type Options struct {
	SessionID string
	Filters   map[string]string
}

// Backend performs a single model invocation and returns the raw response
// payload. Implementations map their provider's rate-limit signals to
// ThrottlingError; the normalizer handles the payload shape.
type Backend interface {
	Name() string
	Invoke(ctx context.Context, prompt string, opts Options) ([]byte, error)
}

// Client drives a Backend through the retry state machine. A call attempts
// the backend, retries with exponential backoff and jitter on throttling up
// to the retry budget, fails immediately on any other error, and is bounded
// overall by the configured timeout. Retries re-send the same prompt, so a
// call is idempotent from the caller's perspective.
type Client struct {
	backend Backend
	cfg     types.GenerationConfig
	log     *logger.Logger
}

// New builds a generation client.
func New(backend Backend, cfg types.GenerationConfig, log *logger.Logger) *Client {
	return &Client{backend: backend, cfg: cfg, log: log.With("component", "generate", "backend", backend.Name())}
}

// Generate invokes the backend with the assembled prompt and returns the raw
// response payload. On throttling it waits min(maxDelay, base*2^attempt +
// jitter) and re-attempts until the retry budget is spent, then fails with a
// rate-limit-specific ThrottlingError. Deadline expiry anywhere in the call,
// backoff waits included, yields a TimeoutError; caller cancellation is
// honored before any backoff wait begins.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) ([]byte, error) {
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := msOrDefault(c.cfg.BaseDelayMs, defaultBaseDelay)
	maxDelay := msOrDefault(c.cfg.MaxDelayMs, defaultMaxDelay)
	timeout := msOrDefault(c.cfg.TimeoutMs, defaultTimeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	for attempt := 0; ; attempt++ {
		raw, err := c.backend.Invoke(ctx, prompt, opts)
		if err == nil {
			return raw, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, deadlineError(ctxErr, start)
		}
		if !IsThrottling(err) {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, &types.ThrottlingError{
				Message: fmt.Sprintf("request rate limit exceeded after %d attempts: %v", attempt+1, err),
			}
		}

		delay := backoffDelay(attempt, baseDelay, maxDelay)
		c.log.Warn("backend throttled, backing off", "attempt", attempt+1, "delay", delay)

		select {
		case <-ctx.Done():
			return nil, deadlineError(ctx.Err(), start)
		case <-time.After(delay):
		}
	}
}

// backoffDelay computes min(maxDelay, base*2^attempt + jitter).
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))*float64(base)) + randomJitter()
	if delay > max {
		delay = max
	}
	return delay
}

// deadlineError maps context expiry to the error taxonomy: deadline expiry
// is a TimeoutError, caller cancellation passes through.
func deadlineError(ctxErr error, start time.Time) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &types.TimeoutError{Elapsed: time.Since(start).Round(time.Millisecond)}
	}
	return ctxErr
}

// throttlePhrases are the message patterns classified as rate-limit signals.
var throttlePhrases = []string{"throttl", "rate limit", "too many requests", "too high"}

// IsThrottling reports whether err is a transient rate-limit signal, by
// symbolic error kind or by message pattern.
func IsThrottling(err error) bool {
	if err == nil {
		return false
	}
	var terr *types.ThrottlingError
	if errors.As(err, &terr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range throttlePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func msOrDefault(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
