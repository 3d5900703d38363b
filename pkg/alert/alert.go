// Package alert carries per-row diagnostics from the pipeline to whoever
// runs it: a log, a collector for a run summary, or both.
package alert

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lookup_alerts_total",
	Help: "Total diagnostics raised by importance",
}, []string{"importance"})

// Importance grades a diagnostic.
type Importance string

const (
	// ImportanceError marks a row that produced no output because of a problem.
	ImportanceError Importance = "error"

	// ImportanceWarning marks a partial result, e.g. a dropped page.
	ImportanceWarning Importance = "warning"

	// ImportanceInfo is informational only.
	ImportanceInfo Importance = "info"
)

// Alert is one diagnostic.
type Alert struct {
	Message    string     `json:"message"`
	Importance Importance `json:"importance"`

	// Line is the entry's line number, 0 when the alert is not tied to a row.
	Line int `json:"line,omitempty"`
}

// String renders the alert for humans.
func (a Alert) String() string {
	if a.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", a.Importance, a.Line, a.Message)
	}
	return fmt.Sprintf("[%s] %s", a.Importance, a.Message)
}

// Sink accepts diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Alert(a Alert)
}

// Discard drops every alert.
var Discard Sink = discard{}

type discard struct{}

func (discard) Alert(Alert) {}

// LogSink writes alerts to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs every alert at a level matching its importance.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Alert implements Sink.
func (s *LogSink) Alert(a Alert) {
	alertsTotal.WithLabelValues(string(a.Importance)).Inc()

	var event *zerolog.Event
	switch a.Importance {
	case ImportanceError:
		event = s.logger.Error()
	case ImportanceWarning:
		event = s.logger.Warn()
	default:
		event = s.logger.Info()
	}
	if a.Line > 0 {
		event = event.Int("line", a.Line)
	}
	event.Msg(a.Message)
}

// Collector keeps alerts in memory in arrival order.
type Collector struct {
	mu     sync.Mutex
	alerts []Alert
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Alert implements Sink.
func (c *Collector) Alert(a Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

// Alerts returns a copy of everything collected so far.
func (c *Collector) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Count returns how many alerts of the given importance were collected.
func (c *Collector) Count(importance Importance) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, a := range c.alerts {
		if a.Importance == importance {
			n++
		}
	}
	return n
}

// Multi fans an alert out to several sinks.
type Multi []Sink

// Alert implements Sink.
func (m Multi) Alert(a Alert) {
	for _, s := range m {
		if s != nil {
			s.Alert(a)
		}
	}
}

// ForLine returns a sink that stamps line onto alerts that carry none.
func ForLine(sink Sink, line int) Sink {
	return lineSink{sink: sink, line: line}
}

type lineSink struct {
	sink Sink
	line int
}

func (s lineSink) Alert(a Alert) {
	if a.Line == 0 {
		a.Line = s.line
	}
	s.sink.Alert(a)
}
