package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/lookup-reconciler/pkg/alert"
	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/credential"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxPages is the deepest page the remote search APIs will serve.
// Results past it are silently lost.
const MaxPages = 10

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookup_pages_fetched_total",
		Help: "Follow-up pages fetched successfully",
	})

	pagesTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookup_pages_truncated_total",
		Help: "Searches whose total exceeded MaxPages worth of results",
	})
)

// Pager knows how a module's API pages its search results.
type Pager interface {
	// PageSize is the number of results per page requested by the locator.
	PageSize() int

	// Total reads the total result count from a page body.
	Total(data json.RawMessage) (int, error)

	// Page sets the parameters selecting the given 1-based page.
	Page(params url.Values, page int)
}

// Executor performs a single request.
type Executor interface {
	Execute(ctx context.Context, q client.Query) (*client.Response, error)
}

// Paginator fetches follow-up pages for a first response.
type Paginator struct {
	pager    Pager
	executor Executor
	rotator  *credential.Rotator
	alerts   alert.Sink
	logger   zerolog.Logger
}

// New creates a paginator. A nil alert sink discards warnings.
func New(pager Pager, executor Executor, rotator *credential.Rotator, alerts alert.Sink) *Paginator {
	if alerts == nil {
		alerts = alert.Discard
	}
	return &Paginator{
		pager:    pager,
		executor: executor,
		rotator:  rotator,
		alerts:   alerts,
		logger:   log.With().Str("component", "paginator").Logger(),
	}
}

// WithAlerts returns a copy of the paginator reporting to another sink.
func (p *Paginator) WithAlerts(alerts alert.Sink) *Paginator {
	out := *p
	out.alerts = alerts
	return &out
}

// PageCount returns how many pages to request for total results.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	pages := (total + pageSize - 1) / pageSize
	if pages > MaxPages {
		return MaxPages
	}
	return pages
}

type pageResult struct {
	page     int
	response *client.Response
	err      error
}

// Expand returns first followed by every other page in page order.
// A nil first yields nil.
func (p *Paginator) Expand(ctx context.Context, first *client.Response) ([]*client.Response, error) {
	if first == nil {
		return nil, nil
	}

	start := time.Now()

	total, err := p.pager.Total(first.Data)
	if err != nil {
		p.alerts.Alert(alert.Alert{
			Message:    fmt.Sprintf("could not read result count for %q: %v", first.Passthrough.Subject, err),
			Importance: alert.ImportanceWarning,
		})
		return []*client.Response{first}, nil
	}

	size := p.pager.PageSize()
	totalPages := PageCount(total, size)
	if total > MaxPages*size {
		pagesTruncatedTotal.Inc()
		p.logger.Info().
			Str("subject", first.Passthrough.Subject).
			Int("total", total).
			Int("max_pages", MaxPages).
			Msg("Search truncated at page limit")
	}

	if totalPages == 1 {
		return []*client.Response{first}, nil
	}

	p.logger.Debug().
		Str("subject", first.Passthrough.Subject).
		Int("total", total).
		Int("total_pages", totalPages).
		Msg("Fetching follow-up pages")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	base := first.Query()
	results := make(chan pageResult, totalPages-1)

	var wg sync.WaitGroup
	for page := 2; page <= totalPages; page++ {
		q := base.Clone()
		q.Auth = q.Auth.WithCredential(p.rotator.Next())
		q.Passthrough.Page = page
		p.pager.Page(q.Params, page)

		wg.Add(1)
		go func(page int, q client.Query) {
			defer wg.Done()
			resp, err := p.executor.Execute(ctx, q)
			results <- pageResult{page: page, response: resp, err: err}
		}(page, q)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := []*client.Response{first}
	var fatal error
	for result := range results {
		switch {
		case result.err == nil:
			if result.response != nil {
				pages = append(pages, result.response)
				pagesFetchedTotal.Inc()
			}
		case client.IsFatal(result.err):
			if fatal == nil {
				fatal = result.err
				cancel()
			}
		default:
			p.alerts.Alert(alert.Alert{
				Message:    result.err.Error(),
				Importance: alert.ImportanceWarning,
			})
		}
	}

	if fatal != nil {
		return nil, fmt.Errorf("page fetch for %q: %w", first.Passthrough.Subject, fatal)
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].Passthrough.Page < pages[j].Passthrough.Page
	})

	p.logger.Debug().
		Str("subject", first.Passthrough.Subject).
		Int("pages", len(pages)).
		Int("total_pages", totalPages).
		Dur("duration", time.Since(start)).
		Msg("Pagination complete")

	return pages, nil
}

// OffsetPager pages with a zero-based start index (start = (page-1) × size).
type OffsetPager struct {
	Size       int
	StartParam string
	TotalField string
}

// PageSize implements Pager.
func (o OffsetPager) PageSize() int { return o.Size }

// Total implements Pager.
func (o OffsetPager) Total(data json.RawMessage) (int, error) {
	return totalField(data, o.TotalField)
}

// Page implements Pager.
func (o OffsetPager) Page(params url.Values, page int) {
	params.Set(o.StartParam, strconv.Itoa((page-1)*o.Size))
}

// NumberPager pages with a 1-based page number parameter.
type NumberPager struct {
	Size       int
	PageParam  string
	TotalField string
}

// PageSize implements Pager.
func (n NumberPager) PageSize() int { return n.Size }

// Total implements Pager.
func (n NumberPager) Total(data json.RawMessage) (int, error) {
	return totalField(data, n.TotalField)
}

// Page implements Pager.
func (n NumberPager) Page(params url.Values, page int) {
	params.Set(n.PageParam, strconv.Itoa(page))
}

// totalField reads an integer at a dotted path ("results.total_count").
func totalField(data json.RawMessage, path string) (int, error) {
	var node any
	if err := json.Unmarshal(data, &node); err != nil {
		return 0, fmt.Errorf("decode page: %w", err)
	}

	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("field %q: not an object", path)
		}
		node, ok = obj[key]
		if !ok {
			return 0, fmt.Errorf("field %q: missing", path)
		}
	}

	switch v := node.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", path, err)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("field %q: unexpected type %T", path, v)
	}
}
