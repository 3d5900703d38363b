package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/lookup-reconciler/pkg/metrics"
	"github.com/rs/zerolog"
)

// metricsShutdownTimeout bounds how long Stop waits for scrapes in flight.
const metricsShutdownTimeout = 5 * time.Second

// metricsEndpoint serves /metrics and /health for the duration of a run.
type metricsEndpoint struct {
	srv     *http.Server
	addr    string
	timeout time.Duration
	logger  zerolog.Logger
}

// startMetrics binds addr and serves metrics in the background.
func startMetrics(addr string, logger zerolog.Logger) (*metricsEndpoint, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	m := &metricsEndpoint{
		srv:     metrics.NewServer(addr),
		addr:    ln.Addr().String(),
		timeout: metricsShutdownTimeout,
		logger:  logger,
	}
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	logger.Info().Str("addr", m.addr).Msg("Serving metrics")
	return m, nil
}

// Stop shuts the server down. A failed shutdown is logged and returned; it
// never replaces the run's own result.
func (m *metricsEndpoint) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Error().Err(err).Str("addr", m.addr).Msg("Metrics server shutdown failed")
		return err
	}
	m.logger.Debug().Str("addr", m.addr).Msg("Metrics server stopped")
	return nil
}
