package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	_ "github.com/KaramelBytes/usageql-cli/internal/backend/sqlite"
	"github.com/KaramelBytes/usageql-cli/internal/pipeline"
	"github.com/KaramelBytes/usageql-cli/internal/router"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	b, err := backend.Open(ctx, backend.Config{Kind: "sqlite"})
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	res, err := pipeline.Run(ctx, pipeline.Options{DataDir: t.TempDir(), Backend: b})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return New(Options{
		Router:  router.New(b, router.Options{}),
		Tables:  b,
		Summary: &res.Summary,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestQueryEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/query", `{"question":"Tell me about Pro customers"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	var got struct {
		ID       string  `json:"id"`
		Analysis string  `json:"analysis"`
		SQL      string  `json:"sql"`
		Error    *string `json:"error"`
		Data     struct {
			Columns []string         `json:"columns"`
			Rows    []map[string]any `json:"rows"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Analysis != "plan_filtered" || got.Error != nil || got.ID == "" {
		t.Fatalf("unexpected result: %s", w.Body)
	}
	if !strings.Contains(got.SQL, "plan_name = 'Pro'") {
		t.Fatalf("sql: %s", got.SQL)
	}
	if len(got.Data.Rows) == 0 || got.Data.Rows[0]["plan_name"] != "Pro" {
		t.Fatalf("rows: %v", got.Data.Rows)
	}
}

func TestQueryEndpointFallback(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/query", `{"question":"asdkfj random text"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["data"] != nil || m["error"] != nil {
		t.Fatalf("fallback body: %s", w.Body)
	}
}

func TestQueryEndpointBadRequest(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{`{`, `{"question":"   "}`, `[]`} {
		w := do(t, s, http.MethodPost, "/api/query", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d", body, w.Code)
		}
	}
	if w := do(t, s, http.MethodGet, "/api/query", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/query: status %d", w.Code)
	}
}

func TestListingEndpoints(t *testing.T) {
	s := newTestServer(t)

	var analyses map[string]string
	w := do(t, s, http.MethodGet, "/api/analyses", "")
	if err := json.Unmarshal(w.Body.Bytes(), &analyses); err != nil || len(analyses) != 9 {
		t.Fatalf("analyses: %s", w.Body)
	}

	var examples []string
	w = do(t, s, http.MethodGet, "/api/examples", "")
	if err := json.Unmarshal(w.Body.Bytes(), &examples); err != nil || len(examples) != 10 {
		t.Fatalf("examples: %s", w.Body)
	}

	var tables []string
	w = do(t, s, http.MethodGet, "/api/tables", "")
	if err := json.Unmarshal(w.Body.Bytes(), &tables); err != nil {
		t.Fatalf("tables: %s", w.Body)
	}
	if !strings.Contains(strings.Join(tables, ","), "customer_summary") {
		t.Fatalf("tables missing views: %v", tables)
	}

	var sc backend.Schema
	w = do(t, s, http.MethodGet, "/api/tables/plans/schema", "")
	if err := json.Unmarshal(w.Body.Bytes(), &sc); err != nil || sc.Table != "plans" || len(sc.Columns) == 0 {
		t.Fatalf("schema: %s", w.Body)
	}
	if w := do(t, s, http.MethodGet, "/api/tables/nope/schema", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing table: status %d", w.Code)
	}

	w = do(t, s, http.MethodGet, "/api/summary", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total_customers":100`) {
		t.Fatalf("summary: %s", w.Body)
	}
	if w := do(t, s, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
}

func TestNoBackend(t *testing.T) {
	s := New(Options{})
	if w := do(t, s, http.MethodGet, "/api/tables", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("tables without backend: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/summary", ""); w.Code != http.StatusNotFound {
		t.Fatalf("summary without data: %d", w.Code)
	}
	w := do(t, s, http.MethodPost, "/api/query", `{"question":"top 3 customers"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "LIMIT 3") {
		t.Fatalf("preview query: %s", w.Body)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	s := New(Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id: %q", w.Header().Get("X-Request-ID"))
	}
}

func TestRecovery(t *testing.T) {
	h := Chain(RequestID(), Recovery(zap.NewNop()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := do(t, h, http.MethodGet, "/", "")
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), codeInternal) {
		t.Fatalf("recovery: %d %s", w.Code, w.Body)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}
	now = now.Add(2 * time.Minute)
	if !rl.Allow("a") {
		t.Fatal("bucket should refill")
	}
	if len(rl.clients) != 1 {
		t.Fatalf("idle clients should be pruned, have %d", len(rl.clients))
	}
	if !NewRateLimiter(0, 0).Allow("x") {
		t.Fatal("zero rps disables limiting")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := New(Options{RateLimitRPS: 0.001, RateLimitBurst: 1})
	if w := do(t, s, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/healthz", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: %d", w.Code)
	}
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, New(Options{}), nil) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
