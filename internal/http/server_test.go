package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/core"
	ledmem "bilancio/internal/ledger/memory"
	"bilancio/internal/log"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	srv := NewServer(":0", ledmem.New(core.DefaultDateWindow()), logger, Options{
		RateLimitPerMinute: 1000,
	})
	t.Cleanup(func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rr, req)
	return rr
}

// seedTwoMonths posts the canonical two-month ledger: a 2000 cent salary
// and a 300 cent rent in both January and February 2024.
func seedTwoMonths(t *testing.T, srv *Server) {
	t.Helper()
	for _, body := range []string{
		`{"amountCents": 2000, "date": "2024-01-05", "category": "Salary"}`,
		`{"amountCents": -300, "date": "2024-01-10", "category": "Rent"}`,
		`{"amountCents": 2000, "date": "2024-02-05", "category": "Salary"}`,
		`{"amountCents": -300, "date": "2024-02-10", "category": "Rent"}`,
	} {
		rr := doJSON(t, srv, http.MethodPost, "/api/entries", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed entry status=%d body=%s", rr.Code, rr.Body.String())
		}
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Fatalf("%s content type=%q", path, ct)
		}
	}

	rr := doJSON(t, srv, http.MethodPost, "/healthz", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "entries_total 4") {
		t.Fatalf("metrics missing entry count:\n%s", body)
	}
	if !strings.Contains(body, "http_requests_total") || !strings.Contains(body, "uptime_seconds") {
		t.Fatalf("metrics missing counters:\n%s", body)
	}
}

func TestEntryCRUDFlow(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/entries", `{"amountCents": 1500, "date": "2024-03-01", "category": "Salary", "note": "march"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/entries/1", `{"amountCents": -700, "date": "2024-03-02", "category": "Rent"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated core.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.ID != 1 || updated.Amount.Cents != -700 || updated.Category != "Rent" {
		t.Fatalf("unexpected updated entry: %+v", updated)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/entries/1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries/1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPatch, "/api/entries/1", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"zero amount", `{"amountCents": 0, "date": "2024-01-05", "category": "Misc"}`, http.StatusUnprocessableEntity},
		{"empty category", `{"amountCents": 100, "date": "2024-01-05", "category": ""}`, http.StatusUnprocessableEntity},
		{"bad date", `{"amountCents": 100, "date": "2024-13-05", "category": "Misc"}`, http.StatusBadRequest},
		{"far future date", `{"amountCents": 100, "date": "2099-01-05", "category": "Misc"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"amountCents": `, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/entries", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}

func TestSummaryScenario(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/summary?from=2024-01&to=2024-02", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(resp.Summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(resp.Summaries))
	}
	for i, s := range resp.Summaries {
		if s.TotalIncome.Cents != 2000 || s.TotalExpense.Cents != 300 || s.Net.Cents != 1700 {
			t.Fatalf("summary[%d]: income=%d expense=%d net=%d", i, s.TotalIncome.Cents, s.TotalExpense.Cents, s.Net.Cents)
		}
		if s.ByCategory["Salary"].Cents != 2000 || s.ByCategory["Rent"].Cents != -300 {
			t.Fatalf("summary[%d] categories: %+v", i, s.ByCategory)
		}
	}
	if got := resp.Summaries[0].Period.String(); got != "2024-01" {
		t.Fatalf("first period=%s", got)
	}
}

func TestSummaryIncludesEmptyMonths(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/summary?from=2023-12&to=2024-03", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	var resp summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(resp.Summaries) != 4 {
		t.Fatalf("expected 4 summaries, got %d", len(resp.Summaries))
	}
	if resp.Summaries[0].Net.Cents != 0 || resp.Summaries[3].Net.Cents != 0 {
		t.Fatal("expected zero aggregates for empty months")
	}
}

func TestSeriesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/series?from=2024-01&to=2024-02&metric=expense", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("series status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp seriesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode series: %v", err)
	}
	if resp.Metric != "expense" || len(resp.Points) != 2 {
		t.Fatalf("unexpected series: %+v", resp)
	}
	for i, p := range resp.Points {
		if p.Value.Cents != 300 {
			t.Fatalf("point[%d]=%d want 300", i, p.Value.Cents)
		}
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/series?from=2024-01&to=2024-02&metric=income&category=Salary", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("category series status=%d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode category series: %v", err)
	}
	if resp.Category != "Salary" {
		t.Fatalf("category=%q", resp.Category)
	}
	for i, p := range resp.Points {
		if p.Value.Cents != 2000 {
			t.Fatalf("point[%d]=%d want 2000", i, p.Value.Cents)
		}
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/series?from=2024-01&to=2024-02&metric=nonsense", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad metric, got %d", rr.Code)
	}
}

func TestForecastScenario(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/forecast?from=2024-01&to=2024-02&metric=net&horizon=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("forecast status=%d body=%s", rr.Code, rr.Body.String())
	}
	var pred core.Prediction
	if err := json.Unmarshal(rr.Body.Bytes(), &pred); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if pred.Method != core.MethodLinearTrend {
		t.Fatalf("method=%q", pred.Method)
	}
	if len(pred.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pred.Points))
	}
	if got := pred.Points[0].Period.String(); got != "2024-03" {
		t.Fatalf("predicted period=%s", got)
	}
	if pred.Points[0].Value.Cents != 1700 {
		t.Fatalf("predicted value=%d want 1700", pred.Points[0].Value.Cents)
	}
}

func TestForecastInsufficientHistory(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/entries", `{"amountCents": 500, "date": "2024-01-05", "category": "Misc"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/forecast?from=2024-01&to=2024-01&metric=net&horizon=2", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for single-month history, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/forecast?from=2024-01&to=2024-02&metric=net&horizon=0", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zero horizon, got %d", rr.Code)
	}
}

func TestBalanceAndOutlook(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	rr := doJSON(t, srv, http.MethodPut, "/api/balance", `{"balanceCents": 10000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put balance status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/balance", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get balance status=%d", rr.Code)
	}
	var bal balanceResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.Balance.Cents != 10000 {
		t.Fatalf("balance=%d want 10000", bal.Balance.Cents)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/outlook?from=2024-01&to=2024-02&horizon=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("outlook status=%d body=%s", rr.Code, rr.Body.String())
	}
	var outlook core.Outlook
	if err := json.Unmarshal(rr.Body.Bytes(), &outlook); err != nil {
		t.Fatalf("decode outlook: %v", err)
	}
	if outlook.Balance.Cents != 10000 {
		t.Fatalf("outlook balance=%d", outlook.Balance.Cents)
	}
	if len(outlook.Points) != 2 {
		t.Fatalf("expected 2 outlook points, got %d", len(outlook.Points))
	}
	if outlook.Points[0].Value.Cents != 11700 || outlook.Points[1].Value.Cents != 13400 {
		t.Fatalf("outlook points: %d, %d", outlook.Points[0].Value.Cents, outlook.Points[1].Value.Cents)
	}
}

func TestListEntriesInRange(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/api/entries?from=2024-02&to=2024-02", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var entries []core.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in february, got %d", len(entries))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries?from=2024-05&to=2024-01", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rr.Code)
	}
}

func TestResponseCacheInvalidation(t *testing.T) {
	srv := newTestServer(t)
	seedTwoMonths(t, srv)

	target := "/api/summary?from=2024-01&to=2024-02"

	rr := doJSON(t, srv, http.MethodGet, target, "")
	if rr.Code != http.StatusOK || rr.Header().Get("X-Cache") != "miss" {
		t.Fatalf("first read: status=%d cache=%s", rr.Code, rr.Header().Get("X-Cache"))
	}
	first := rr.Body.String()

	rr = doJSON(t, srv, http.MethodGet, target, "")
	if rr.Header().Get("X-Cache") != "hit" {
		t.Fatalf("second read not cached: %s", rr.Header().Get("X-Cache"))
	}
	if rr.Body.String() != first {
		t.Fatal("cached body differs from original")
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/entries", `{"amountCents": -100, "date": "2024-01-20", "category": "Coffee"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("mutation status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, target, "")
	if rr.Header().Get("X-Cache") != "miss" {
		t.Fatal("expected cache invalidation after mutation")
	}
	var resp summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if resp.Summaries[0].Net.Cents != 1600 {
		t.Fatalf("january net after mutation=%d want 1600", resp.Summaries[0].Net.Cents)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got == "" {
		t.Fatal("missing X-Frame-Options header")
	}
}
