package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/Sternrassler/lookup-reconciler/internal/testutil"
	"github.com/Sternrassler/lookup-reconciler/pkg/alert"
	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/credential"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler/companieshouse"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler/opencorporates"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

const officerSearchBody = `{
	"total_results": 2,
	"items": [
		{
			"title": "John Smith",
			"date_of_birth": {"year": 1980, "month": 5},
			"address_snippet": "1 Road",
			"links": {"self": "/officers/abc123/appointments"}
		},
		{
			"title": "John Smith",
			"date_of_birth": {"year": 1962, "month": 11},
			"address_snippet": "9 Lane",
			"links": {"self": "/officers/def456/appointments"}
		}
	]
}`

func testCredentials(names ...string) []credential.Credential {
	var out []credential.Credential
	for _, n := range names {
		out = append(out, credential.Credential{Name: n, Key: n + "-key"})
	}
	return out
}

func newOfficerPipeline(t *testing.T, mock *testutil.MockAPI, alerts alert.Sink, creds ...string) *Pipeline {
	t.Helper()

	module, err := reconciler.Build(companieshouse.OfficersID, reconciler.Settings{
		"individualName":        "name",
		"individualDateOfBirth": "dob",
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(creds) == 0 {
		creds = []string{"A"}
	}
	cfg := DefaultConfig(testCredentials(creds...))
	cfg.Alerts = alerts
	cfg.BaseURL = mock.URL()

	p, err := New(module, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestProcess_EndToEnd(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/search/officers", testutil.NewJSONResponse(officerSearchBody))

	alerts := alert.NewCollector()
	p := newOfficerPipeline(t, mock, alerts)

	entry := record.NewEntry(2, map[string]string{"name": "John Smith", "dob": "1980-05-17"})
	rows, err := p.Process(context.Background(), entry)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1: %v", len(rows), rows)
	}
	want := record.Row{
		"officerID":          "abc123",
		"officerName":        "John Smith",
		"officerDateOfBirth": "1980-5",
		"officerAddress":     "1 Road",
	}
	for k, v := range want {
		if rows[0][k] != v {
			t.Errorf("row[%q] = %v, want %v", k, rows[0][k], v)
		}
	}
	if len(rows[0]) != len(want) {
		t.Errorf("row has %d keys, want %d", len(rows[0]), len(want))
	}

	req := mock.RequestsFor("/search/officers")[0]
	if req.Query.Get("q") != "John Smith" || req.Query.Get("items_per_page") != "100" {
		t.Errorf("query = %v", req.Query)
	}
	if req.Username != "A-key" {
		t.Errorf("basic auth user = %q, want A-key", req.Username)
	}
	if len(alerts.Alerts()) != 0 {
		t.Errorf("unexpected alerts: %v", alerts.Alerts())
	}
}

func TestProcess_MissingField(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	alerts := alert.NewCollector()
	p := newOfficerPipeline(t, mock, alerts)

	rows, err := p.Process(context.Background(), record.NewEntry(7, map[string]string{"name": "  "}))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}

	got := alerts.Alerts()
	if len(got) != 1 {
		t.Fatalf("got %d alerts, want 1", len(got))
	}
	if got[0].Importance != alert.ImportanceError || got[0].Line != 7 {
		t.Errorf("alert = %+v, want error on line 7", got[0])
	}
	if mock.RequestCount() != 0 {
		t.Error("no request should be sent for an invalid entry")
	}
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name      string
		response  testutil.MockResponse
		wantFatal error
	}{
		{name: "rate limited", response: testutil.NewRateLimitResponse(), wantFatal: client.ErrRateLimitExceeded},
		{name: "bad credential", response: testutil.NewUnauthorizedResponse(), wantFatal: client.ErrInvalidCredential},
		{name: "server error", response: testutil.NewServerErrorResponse()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetResponse("/search/officers", tt.response)

			alerts := alert.NewCollector()
			p := newOfficerPipeline(t, mock, alerts)

			rows, err := p.Process(context.Background(), record.NewEntry(3, map[string]string{"name": "John Smith"}))
			if len(rows) != 0 {
				t.Errorf("rows = %v, want none", rows)
			}

			if tt.wantFatal != nil {
				if !errors.Is(err, tt.wantFatal) {
					t.Errorf("error = %v, want %v", err, tt.wantFatal)
				}
				return
			}

			if err != nil {
				t.Fatalf("server errors must not be fatal: %v", err)
			}
			got := alerts.Alerts()
			if len(got) != 1 || got[0].Line != 3 || !strings.Contains(got[0].Message, "John Smith") {
				t.Errorf("alerts = %v, want one diagnostic naming the subject on line 3", got)
			}
		})
	}
}

func TestProcess_Paginates(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetHandler("/search/officers", func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start_index"))
		id := fmt.Sprintf("p%d", start/100+1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total_results": 250, "items": [{"title": "John Smith", "links": {"self": "/officers/%s/appointments"}}]}`, id)
	})

	p := newOfficerPipeline(t, mock, nil, "A", "B")

	rows, err := p.Process(context.Background(), record.NewEntry(2, map[string]string{"name": "John Smith"}))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	var ids []string
	for _, r := range rows {
		ids = append(ids, r["officerID"].(string))
	}
	if strings.Join(ids, ",") != "p1,p2,p3" {
		t.Errorf("ids = %v, want p1,p2,p3 in page order", ids)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("request count = %d, want 3", mock.RequestCount())
	}
}

func TestRun_EntryOrder(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetHandler("/search/officers", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total_results": 1, "items": [{"title": %q, "links": {"self": "/officers/%s/appointments"}}]}`,
			q, strings.ReplaceAll(strings.ToLower(q), " ", "-"))
	})

	alerts := alert.NewCollector()
	p := newOfficerPipeline(t, mock, alerts, "A", "B")

	names := []string{"Ann Lee", "Bob Ray", "", "Cat Poe", "Dan Orr", "Eve Fox"}
	var entries []record.Entry
	for i, n := range names {
		entries = append(entries, record.NewEntry(i+2, map[string]string{"name": n}))
	}

	rows, err := p.Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var got []string
	for _, r := range rows {
		got = append(got, r["officerName"].(string))
	}
	if strings.Join(got, ",") != "Ann Lee,Bob Ray,Cat Poe,Dan Orr,Eve Fox" {
		t.Errorf("rows out of entry order: %v", got)
	}
	if alerts.Count(alert.ImportanceError) != 1 || alerts.Alerts()[0].Line != 4 {
		t.Errorf("alerts = %v, want one error for line 4", alerts.Alerts())
	}
}

func TestRun_FatalAborts(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/search/officers", testutil.NewUnauthorizedResponse())

	p := newOfficerPipeline(t, mock, nil)

	var entries []record.Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, record.NewEntry(i+2, map[string]string{"name": "John Smith"}))
	}

	rows, err := p.Run(context.Background(), entries)
	if !errors.Is(err, client.ErrInvalidCredential) {
		t.Fatalf("Run() error = %v, want ErrInvalidCredential", err)
	}
	if rows != nil {
		t.Errorf("rows = %v, want nil", rows)
	}
	if n := mock.RequestCount(); n >= len(entries) {
		t.Errorf("request count = %d, remaining work should have been cancelled", n)
	}
}

func TestProcess_NoMatchError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetJSON("/v0.4/companies/search", http.StatusOK, map[string]any{
		"results": map[string]any{
			"total_count": 1,
			"companies": []any{
				map[string]any{"company": map[string]any{"name": "ACME TRADING LTD", "company_number": "1"}},
			},
		},
	})

	module, err := reconciler.Build(opencorporates.ID, reconciler.Settings{
		"companyName":  "company",
		"preciseMatch": "true",
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	alerts := alert.NewCollector()
	cfg := DefaultConfig(testCredentials("oc"))
	cfg.Alerts = alerts
	cfg.BaseURL = mock.URL()
	p, err := New(module, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rows, err := p.Process(context.Background(), record.NewEntry(5, map[string]string{"company": "Acme Ltd"}))
	if err != nil {
		t.Fatalf("no-match must stay local to the entry: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}

	got := alerts.Alerts()
	if len(got) != 1 || got[0].Importance != alert.ImportanceError || got[0].Line != 5 {
		t.Errorf("alerts = %v, want one error on line 5", got)
	}

	req := mock.Requests()[0]
	if req.Query.Get("api_token") != "oc-key" || req.Query.Get("per_page") != "100" {
		t.Errorf("query = %v", req.Query)
	}
}

func TestNew_Validation(t *testing.T) {
	module, err := reconciler.Build(companieshouse.CompaniesID, reconciler.Settings{"companyName": "name"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := New(nil, DefaultConfig(testCredentials("A"))); err == nil {
		t.Error("expected error for nil module")
	}
	if _, err := New(module, DefaultConfig(nil)); !errors.Is(err, credential.ErrNoCredentials) {
		t.Errorf("error = %v, want ErrNoCredentials", err)
	}

	p, err := New(module, DefaultConfig(testCredentials("A", "B", "C")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Executor().Ceiling() != 6 {
		t.Errorf("Ceiling() = %d, want 6", p.Executor().Ceiling())
	}
	if len(p.Schema()) != 5 {
		t.Errorf("Schema() = %v", p.Schema())
	}
}

func TestNew_PartialClientConfig(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/search/companies", testutil.NewJSONResponse(`{"total_results": 0, "items": []}`))

	module, err := reconciler.Build(companieshouse.CompaniesID, reconciler.Settings{"companyName": "name"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	p, err := New(module, Config{
		Credentials: testCredentials("A", "B"),
		Client:      client.Config{FanoutFactor: 5, RequestsPerSecond: 100},
		BaseURL:     mock.URL(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := p.Executor().Ceiling(); got != 10 {
		t.Errorf("Ceiling() = %d, want 10", got)
	}

	if _, err := p.Process(context.Background(), record.NewEntry(2, map[string]string{"name": "Acme"})); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	reqs := mock.RequestsFor("/search/companies")
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	if ua := reqs[0].Header.Get("User-Agent"); ua != client.DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, client.DefaultUserAgent)
	}
}
