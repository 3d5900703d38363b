// Package pipeline runs entries through a module: locate, request, paginate
// and match.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/lookup-reconciler/pkg/alert"
	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/credential"
	"github.com/Sternrassler/lookup-reconciler/pkg/locator"
	"github.com/Sternrassler/lookup-reconciler/pkg/matcher"
	"github.com/Sternrassler/lookup-reconciler/pkg/pagination"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Outcome labels for lookup_entries_total.
const (
	OutcomeMatched = "matched"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeNoMatch = "no_match"
	OutcomeFailed  = "failed"
	OutcomeAborted = "aborted"
)

var entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lookup_entries_total",
	Help: "Entries processed by module and outcome",
}, []string{"module", "outcome"})

// Config holds pipeline configuration.
type Config struct {
	Credentials []credential.Credential

	// Alerts receives per-entry diagnostics. Nil discards them.
	Alerts alert.Sink

	// Client configures the executor. Module and Credentials are filled in by New.
	Client client.Config

	// Workers is the number of entries processed concurrently.
	Workers int

	// BaseURL overrides the module's API root when set.
	BaseURL string
}

// DefaultConfig returns a configuration with the executor defaults and four workers.
func DefaultConfig(credentials []credential.Credential) Config {
	return Config{
		Credentials: credentials,
		Client:      client.DefaultConfig("", len(credentials)),
		Workers:     4,
	}
}

// Pipeline enriches entries with one module.
type Pipeline struct {
	module    *reconciler.Module
	locator   *locator.Locator
	executor  *client.Executor
	paginator *pagination.Paginator
	matcher   *matcher.Matcher
	alerts    alert.Sink
	workers   int
	logger    zerolog.Logger
}

// New wires a pipeline for module. The credential rotator is created here and
// shared by the locator and the paginator.
func New(module *reconciler.Module, cfg Config) (*Pipeline, error) {
	if module == nil {
		return nil, errors.New("module is required")
	}

	rotator, err := credential.NewRotator(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	clientCfg := cfg.Client
	if clientCfg.UserAgent == "" {
		clientCfg.UserAgent = client.DefaultUserAgent
	}
	clientCfg.Module = module.Manifest.ID
	clientCfg.Credentials = rotator.Len()

	executor, err := client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}

	alerts := cfg.Alerts
	if alerts == nil {
		alerts = alert.Discard
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	locatorCfg := module.Locator
	if cfg.BaseURL != "" {
		locatorCfg.BaseURL = cfg.BaseURL
	}

	return &Pipeline{
		module:    module,
		locator:   locator.New(locatorCfg, rotator),
		executor:  executor,
		paginator: pagination.New(module.Pager, executor, rotator, alerts),
		matcher:   matcher.New(module.Matcher, module.Decoder, module.Schema()),
		alerts:    alerts,
		workers:   workers,
		logger:    log.With().Str("component", "pipeline").Str("module", module.Manifest.ID).Logger(),
	}, nil
}

// Schema returns the columns of every row the pipeline produces.
func (p *Pipeline) Schema() record.Schema {
	return p.module.Schema()
}

// Executor returns the executor shared by all entries.
func (p *Pipeline) Executor() *client.Executor {
	return p.executor
}

// Process enriches one entry. Problems local to the entry are reported to the
// alert sink and yield no rows; the returned error is always fatal to the run.
func (p *Pipeline) Process(ctx context.Context, entry record.Entry) ([]record.Row, error) {
	rows, outcome, err := p.process(ctx, entry)
	entriesTotal.WithLabelValues(p.module.Manifest.ID, outcome).Inc()
	return rows, err
}

func (p *Pipeline) process(ctx context.Context, entry record.Entry) ([]record.Row, string, error) {
	sink := alert.ForLine(p.alerts, entry.Line)

	// Located
	query, err := p.locator.Locate(entry)
	if err != nil {
		sink.Alert(alert.Alert{Message: err.Error(), Importance: alert.ImportanceError})
		return nil, OutcomeInvalid, nil
	}

	// Requested
	first, err := p.executor.Execute(ctx, *query)
	if err != nil {
		if client.IsFatal(err) {
			return nil, OutcomeAborted, err
		}
		sink.Alert(alert.Alert{Message: err.Error(), Importance: alert.ImportanceError})
		return nil, OutcomeFailed, nil
	}

	// Paginated
	pages, err := p.paginator.WithAlerts(sink).Expand(ctx, first)
	if err != nil {
		return nil, OutcomeAborted, err
	}

	// Parsed
	rows, err := p.matcher.Match(entry, pages)
	if err != nil {
		sink.Alert(alert.Alert{Message: err.Error(), Importance: alert.ImportanceError})
		if errors.Is(err, matcher.ErrNoMatch) {
			return nil, OutcomeNoMatch, nil
		}
		return nil, OutcomeFailed, nil
	}

	if len(rows) == 0 {
		return nil, OutcomeEmpty, nil
	}
	return rows, OutcomeMatched, nil
}

// Run processes entries with bounded concurrency and returns their rows
// concatenated in entry order. The first fatal error cancels outstanding
// work and is returned without rows.
func (p *Pipeline) Run(ctx context.Context, entries []record.Entry) ([]record.Row, error) {
	runID := uuid.NewString()
	logger := p.logger.With().Str("run_id", runID).Logger()
	start := time.Now()

	logger.Info().
		Int("entries", len(entries)).
		Int("workers", p.workers).
		Int("ceiling", p.executor.Ceiling()).
		Msg("Starting run")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]record.Row, len(entries))
	queue := make(chan int, len(entries))
	for i := range entries {
		queue <- i
	}
	close(queue)

	var (
		fatalOnce sync.Once
		fatal     error
		processed atomic.Int64
		wg        sync.WaitGroup
	)

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if ctx.Err() != nil {
					return
				}
				rows, err := p.Process(ctx, entries[i])
				if err != nil {
					fatalOnce.Do(func() {
						fatal = err
						cancel()
					})
					return
				}
				results[i] = rows
				processed.Add(1)
			}
		}()
	}
	wg.Wait()

	if fatal != nil {
		logger.Error().
			Err(fatal).
			Int64("processed", processed.Load()).
			Int("entries", len(entries)).
			Msg("Run aborted")
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []record.Row
	for _, r := range results {
		rows = append(rows, r...)
	}

	logger.Info().
		Int("entries", len(entries)).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Run complete")

	return rows, nil
}
