// Package client executes lookup requests: one HTTP call per Query, a shared
// concurrency ceiling, response classification, and optional Redis-backed
// caching and quota tracking. It never retries.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/lookup-reconciler/pkg/cache"
	"github.com/Sternrassler/lookup-reconciler/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// FanoutFactor is the number of simultaneous in-flight requests allowed per credential.
const FanoutFactor = 2

// Prometheus metrics for lookup requests.
var (
	lookupRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_requests_total",
		Help: "Total lookup requests by module and status",
	}, []string{"module", "status"})

	lookupRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lookup_request_duration_seconds",
		Help:    "Lookup request duration in seconds by module",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"module"})

	lookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_errors_total",
		Help: "Total lookup errors by class",
	}, []string{"class"})

	lookupInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lookup_requests_in_flight",
		Help: "Lookup requests currently holding a concurrency slot",
	}, []string{"module"})
)

// ErrorClass represents a classification of failed calls.
type ErrorClass string

const (
	// ErrorClassClient represents a non-fatal 4xx/5xx or undecodable body.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassRateLimit represents 429 responses and locally refused requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassCredential represents 401 responses.
	ErrorClassCredential ErrorClass = "credential"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// classifyStatus maps a status code to an error class; "" means success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusUnauthorized:
		return ErrorClassCredential
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// Config holds the executor configuration.
type Config struct {
	// Module labels metrics and logs.
	Module string

	// Credentials is the number of credentials in rotation.
	// The concurrency ceiling is Credentials × FanoutFactor.
	Credentials int

	// FanoutFactor overrides the package default when > 0.
	FanoutFactor int

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Transport allows injecting a custom round tripper (tests, proxies).
	Transport http.RoundTripper

	// Redis enables the response cache and quota tracking when set.
	Redis *redis.Client

	// CacheTTL is the lifetime of cached responses; 0 disables caching.
	CacheTTL time.Duration

	// TrackQuota records X-Ratelimit-* headers per credential and refuses
	// requests on exhausted credentials. Requires Redis.
	TrackQuota bool

	// RequestsPerSecond paces outbound requests across the executor; 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the pacer's burst size (default 1).
	Burst int
}

// DefaultUserAgent identifies the executor when no User-Agent is configured.
const DefaultUserAgent = "lookup-reconciler/0.1.0"

// DefaultConfig returns a safe default configuration.
func DefaultConfig(module string, credentials int) Config {
	return Config{
		Module:       module,
		Credentials:  credentials,
		FanoutFactor: FanoutFactor,
		UserAgent:    DefaultUserAgent,
		Timeout:      30 * time.Second,
	}
}

// Executor performs lookup requests.
type Executor struct {
	httpClient *http.Client
	sem        chan struct{}
	pacer      *rate.Limiter
	cache      *cache.Manager
	quota      *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// New creates a new executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Credentials < 1 {
		return nil, fmt.Errorf("at least one credential is required")
	}
	if cfg.FanoutFactor <= 0 {
		cfg.FanoutFactor = FanoutFactor
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TrackQuota && cfg.Redis == nil {
		return nil, fmt.Errorf("quota tracking requires a redis client")
	}
	if cfg.CacheTTL > 0 && cfg.Redis == nil {
		return nil, fmt.Errorf("response caching requires a redis client")
	}

	logger := log.With().Str("component", "lookup-executor").Str("module", cfg.Module).Logger()

	e := &Executor{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		sem:    make(chan struct{}, cfg.Credentials*cfg.FanoutFactor),
		config: cfg,
		logger: logger,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		e.pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.CacheTTL > 0 {
		e.cache = cache.NewManager(cfg.Redis, cfg.Module, cfg.CacheTTL)
	}
	if cfg.TrackQuota {
		e.quota = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return e, nil
}

// Ceiling returns the maximum number of simultaneous in-flight requests.
func (e *Executor) Ceiling() int {
	return cap(e.sem)
}

// Execute performs the query and classifies the outcome:
//   - 429 → *RateLimitError (fatal)
//   - 401 → *InvalidCredentialError (fatal)
//   - other ≥ 400 → *RemoteClientError (non-fatal, no response)
//   - network failure → *TransportError (fatal)
//   - anything else → *Response
func (e *Executor) Execute(ctx context.Context, q Query) (*Response, error) {
	if err := q.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("query auth: %w", err)
	}

	u, err := url.Parse(q.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", q.URL, err)
	}
	params := u.Query()
	for k, v := range q.Params {
		params[k] = append([]string(nil), v...)
	}
	u.RawQuery = ""
	endpoint := u.String()

	cacheKey := cache.CacheKey{Endpoint: endpoint, QueryParams: cloneValues(params)}

	if resp, ok := e.fromCache(ctx, cacheKey, q); ok {
		return resp, nil
	}

	credName := q.Auth.Credential.Name

	if e.quota != nil {
		allowed, err := e.quota.ShouldAllowRequest(ctx, credName)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Quota check failed, sending anyway")
		} else if !allowed {
			lookupErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
			lookupRequestsTotal.WithLabelValues(e.config.Module, "quota_refused").Inc()
			return nil, &RateLimitError{
				Credential: credName,
				Subject:    q.Passthrough.Subject,
				Page:       q.Passthrough.Page,
				Local:      true,
			}
		}
	}

	if err := e.acquire(ctx); err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	defer e.release()

	if e.pacer != nil {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, &TransportError{URL: endpoint, Err: fmt.Errorf("pacer: %w", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.Auth.apply(req, params)
	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	e.logger.Debug().
		Str("endpoint", endpoint).
		Str("subject", q.Passthrough.Subject).
		Int("page", q.Passthrough.Page).
		Str("credential", credName).
		Msg("Executing lookup request")

	startTime := time.Now()
	resp, err := e.httpClient.Do(req)
	lookupRequestDuration.WithLabelValues(e.config.Module).Observe(time.Since(startTime).Seconds())
	if err != nil {
		e.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		lookupErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		lookupRequestsTotal.WithLabelValues(e.config.Module, "network_error").Inc()
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &TransportError{URL: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	if e.quota != nil {
		if err := e.quota.UpdateFromHeaders(ctx, credName, resp.Header); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	lookupRequestsTotal.WithLabelValues(e.config.Module, strconv.Itoa(resp.StatusCode)).Inc()

	if errClass := classifyStatus(resp.StatusCode); errClass != "" {
		lookupErrorsTotal.WithLabelValues(string(errClass)).Inc()
		return nil, e.classifyError(errClass, resp, q)
	}

	if len(body) > 0 && !json.Valid(body) {
		lookupErrorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, &RemoteClientError{
			StatusCode: resp.StatusCode,
			Subject:    q.Passthrough.Subject,
			Page:       q.Passthrough.Page,
			Message:    "response body is not valid JSON",
		}
	}

	if e.cache != nil {
		if err := e.cache.Store(ctx, cacheKey, resp.StatusCode, body); err != nil && !errors.Is(err, cache.ErrNotCacheable) {
			e.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return &Response{
		Status:      resp.StatusCode,
		Data:        json.RawMessage(body),
		URL:         q.URL,
		Auth:        q.Auth,
		Passthrough: q.Passthrough,
		Params:      cloneValues(q.Params),
	}, nil
}

// classifyError builds the typed error for a failing response.
func (e *Executor) classifyError(class ErrorClass, resp *http.Response, q Query) error {
	credName := q.Auth.Credential.Name

	switch class {
	case ErrorClassRateLimit:
		e.logger.Error().
			Str("credential", credName).
			Str("subject", q.Passthrough.Subject).
			Msg("Rate limit exceeded")
		return &RateLimitError{
			Credential: credName,
			Subject:    q.Passthrough.Subject,
			Page:       q.Passthrough.Page,
		}
	case ErrorClassCredential:
		e.logger.Error().Str("credential", credName).Msg("Credential rejected")
		return &InvalidCredentialError{Credential: credName}
	default:
		e.logger.Warn().
			Int("status", resp.StatusCode).
			Str("subject", q.Passthrough.Subject).
			Int("page", q.Passthrough.Page).
			Msg("Lookup request error")
		return &RemoteClientError{
			StatusCode: resp.StatusCode,
			Subject:    q.Passthrough.Subject,
			Page:       q.Passthrough.Page,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
}

// fromCache returns a cached response when caching is enabled and the key is present.
func (e *Executor) fromCache(ctx context.Context, key cache.CacheKey, q Query) (*Response, bool) {
	if e.cache == nil {
		return nil, false
	}

	entry, err := e.cache.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return nil, false
	}

	e.logger.Debug().Str("key", key.String()).Msg("Serving lookup from cache")
	lookupRequestsTotal.WithLabelValues(e.config.Module, "cached").Inc()

	return &Response{
		Status:      entry.StatusCode,
		Data:        json.RawMessage(entry.Data),
		URL:         q.URL,
		Auth:        q.Auth,
		Passthrough: q.Passthrough,
		Params:      cloneValues(q.Params),
		Cached:      true,
	}, true
}

// acquire takes a concurrency slot, giving up when ctx is done.
func (e *Executor) acquire(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		lookupInFlight.WithLabelValues(e.config.Module).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) release() {
	<-e.sem
	lookupInFlight.WithLabelValues(e.config.Module).Dec()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
