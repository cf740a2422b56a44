// Package fitbit talks to the Fitbit Web API. Its Executor applies the retry
// policy every call needs: waiting out rate limits, refreshing expired tokens,
// riding out server and network failures.
package fitbit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rafaeljc/fitbit-ingest/internal/clock"
	"github.com/rafaeljc/fitbit-ingest/internal/config"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/observability"
	"github.com/rafaeljc/fitbit-ingest/internal/token"
	"github.com/rafaeljc/fitbit-ingest/internal/validation"
)

// RateLimitResetHeader carries the seconds until the hourly quota resets.
const RateLimitResetHeader = "Fitbit-Rate-Limit-Reset"

// Tokens is what the executor needs from the token manager.
type Tokens interface {
	AccessToken() string
	Refresh(ctx context.Context) (token.Credential, error)
}

// Policy holds the retry tunables.
type Policy struct {
	MaxAuthRetries    int
	MaxServerRetries  int
	SkipOnServerError bool
	RateLimitMargin   time.Duration
	AuthCooldown      time.Duration
	ServerCooldown    time.Duration
	NetworkCooldown   time.Duration
}

// PolicyFromConfig maps the retry configuration section.
func PolicyFromConfig(cfg *config.RetryConfig) Policy {
	return Policy{
		MaxAuthRetries:    cfg.MaxAuthRetries,
		MaxServerRetries:  cfg.MaxServerRetries,
		SkipOnServerError: cfg.SkipOnServerError,
		RateLimitMargin:   cfg.RateLimitMargin,
		AuthCooldown:      cfg.AuthCooldown,
		ServerCooldown:    cfg.ServerCooldown,
		NetworkCooldown:   cfg.NetworkCooldown,
	}
}

// Executor issues API calls. It is used from the scheduler loop only, but the
// token it reads may be refreshed by any caller.
type Executor struct {
	client   *http.Client
	tokens   Tokens
	policy   Policy
	clock    clock.Clock
	limiter  *rate.Limiter
	language string
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(e *Executor) { e.client = c } }

// WithClock sets the clock used for retry sleeps.
func WithClock(c clock.Clock) Option { return func(e *Executor) { e.clock = c } }

// WithLimiter paces attempts through l.
func WithLimiter(l *rate.Limiter) Option { return func(e *Executor) { e.limiter = l } }

// WithLanguage sets the Accept-Language header, which selects response units.
func WithLanguage(lang string) Option { return func(e *Executor) { e.language = lang } }

// NewExecutor returns an Executor authenticating through tokens.
func NewExecutor(tokens Tokens, policy Policy, opts ...Option) *Executor {
	validation.AssertPresent(tokens, "token manager")

	e := &Executor{
		client: &http.Client{Timeout: 60 * time.Second},
		tokens: tokens,
		policy: policy,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewHourlyLimiter paces requests at perHour with a burst of a quarter hour's
// allowance, so a startup pass does not crawl.
func NewHourlyLimiter(perHour float64) *rate.Limiter {
	validation.AssertPositive(perHour, "requests per hour")
	burst := max(1, int(perHour/4))
	return rate.NewLimiter(rate.Limit(perHour/3600), burst)
}

// Execute performs req until it yields a payload or a terminal error.
//
// Rate limits and network failures are retried without bound. 401 triggers a
// token refresh and is retried up to MaxAuthRetries consecutive times. 5xx is
// retried up to MaxServerRetries consecutive times, then skipped (ErrSkipped)
// or escalated. Any other status is a fatal client fault. A request that can
// not be sent at all (malformed URL, unsupported scheme) is skipped at once.
func (e *Executor) Execute(ctx context.Context, req Request) (*Payload, error) {
	log := logger.FromContext(ctx).With(slog.String("request", req.Name))
	target := req.FullURL()

	authFailures, serverFailures := 0, 0

	for {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		log.Debug("requesting", slog.String("url", target))
		status, header, body, err := e.attempt(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !isNetworkError(err) {
				observability.APIRequestsTotal.WithLabelValues("invalid_request").Inc()
				log.Error("request cannot be sent, skipping",
					slog.String("url", target),
					slog.Any("error", err),
				)
				return nil, &FetchError{
					Kind:    KindClientFault,
					Name:    req.Name,
					URL:     target,
					Skipped: true,
					Err:     fmt.Errorf("%w: %w", ErrSkipped, err),
				}
			}
			observability.APIRequestsTotal.WithLabelValues("network_error").Inc()
			log.Warn("network error, retrying",
				slog.String("url", target),
				slog.Duration("wait", e.policy.NetworkCooldown),
				slog.Any("error", err),
			)
			if err := e.wait(ctx, e.policy.NetworkCooldown, "network"); err != nil {
				return nil, err
			}
			continue
		}
		observability.APIRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

		switch {
		case status >= 200 && status < 300:
			return &Payload{StatusCode: status, Header: header, Body: body}, nil

		case status == http.StatusTooManyRequests:
			authFailures, serverFailures = 0, 0
			wait := resetHint(header) + e.policy.RateLimitMargin
			log.Warn("rate limit reached, waiting for quota reset",
				slog.String("url", target),
				slog.Duration("wait", wait),
			)
			if err := e.wait(ctx, wait, "rate_limited"); err != nil {
				return nil, err
			}

		case status == http.StatusUnauthorized:
			serverFailures = 0
			authFailures++
			if authFailures > e.policy.MaxAuthRetries {
				return nil, &FetchError{Kind: KindAuthExpired, Name: req.Name, URL: target, Status: status, Body: truncate(body)}
			}
			log.Warn("access token rejected, refreshing",
				slog.String("url", target),
				slog.Int("attempt", authFailures),
				slog.String("body", truncate(body)),
			)
			if _, err := e.tokens.Refresh(ctx); err != nil {
				if IsFatal(err) {
					return nil, &FetchError{Kind: KindAuthExpired, Name: req.Name, URL: target, Status: status, Err: err}
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Error("token refresh failed", slog.Any("error", err))
			}
			if err := e.wait(ctx, e.policy.AuthCooldown, "auth"); err != nil {
				return nil, err
			}

		case status >= 500:
			authFailures = 0
			serverFailures++
			if serverFailures > e.policy.MaxServerRetries {
				ferr := &FetchError{Kind: KindServerFault, Name: req.Name, URL: target, Status: status, Body: truncate(body)}
				if e.policy.SkipOnServerError {
					ferr.Skipped = true
					ferr.Err = ErrSkipped
					log.Warn("server error retries exhausted, skipping request", slog.String("url", target), slog.Int("status", status))
				}
				return nil, ferr
			}
			log.Warn("server error, retrying",
				slog.String("url", target),
				slog.Int("status", status),
				slog.Int("attempt", serverFailures),
				slog.Duration("wait", e.policy.ServerCooldown),
			)
			if err := e.wait(ctx, e.policy.ServerCooldown, "server"); err != nil {
				return nil, err
			}

		default:
			log.Error("request rejected",
				slog.String("url", target),
				slog.Int("status", status),
				slog.String("body", truncate(body)),
			)
			return nil, &FetchError{Kind: KindClientFault, Name: req.Name, URL: target, Status: status, Body: truncate(body)}
		}
	}
}

func (e *Executor) attempt(ctx context.Context, req Request) (int, http.Header, []byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Form) > 0 {
		body = strings.NewReader(req.Form.Encode())
	}

	target, err := req.BuildURL()
	if err != nil {
		return 0, nil, nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if e.language != "" {
		httpReq.Header.Set("Accept-Language", e.language)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if !req.NoAuth {
		httpReq.Header.Set("Authorization", "Bearer "+e.tokens.AccessToken())
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	observability.APIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, data, nil
}

// isNetworkError reports whether a transport failure is worth retrying: DNS,
// refused or reset connections, timeouts, and connections closed mid-response.
// Errors raised before anything reached the wire are not.
func isNetworkError(err error) bool {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

func (e *Executor) wait(ctx context.Context, d time.Duration, reason string) error {
	observability.APIWaitSeconds.WithLabelValues(reason).Add(d.Seconds())
	return e.clock.Sleep(ctx, d)
}

// resetHint reads the quota reset offset. A missing or malformed header yields 0,
// leaving only the safety margin.
func resetHint(h http.Header) time.Duration {
	for _, name := range []string{RateLimitResetHeader, "Retry-After"} {
		raw := strings.TrimSpace(h.Get(name))
		if raw == "" {
			continue
		}
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
