package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/modemsim/internal/infrastructure/config"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
	"github.com/nerrad567/modemsim/internal/modem"
	"github.com/nerrad567/modemsim/internal/session"
)

// stubStatus returns a fixed session snapshot.
type stubStatus struct {
	status session.Status
}

func (s stubStatus) Status() session.Status { return s.status }

func testTable(t *testing.T) *modem.Table {
	t.Helper()
	table, err := modem.Compile([]modem.RawEntry{
		{Pattern: "AT", Text: "OK"},
		{Pattern: "AT+CGMI", Text: "fakemodem\nOK"},
		{Pattern: "AT+CSQ={arg}", Text: "+CSQ: {arg}\nOK", DelayMillis: 10},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return table
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	srv, err := New(Deps{
		Config: config.Default().API,
		Logger: logging.Default(),
		Session: stubStatus{status: session.Status{
			Generation: 3,
			PeerPath:   "/dev/pts/7",
			LinkPath:   "/tmp/ttyFAKE",
			Commands:   42,
			StartedAt:  time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		}},
		Table:   testTable(t),
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Deps{})
	if err == nil {
		t.Fatal("New() with empty deps should return an error")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("health version = %v, want test", body["version"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}

	var got session.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding status body: %v", err)
	}
	if got.Generation != 3 {
		t.Errorf("generation = %d, want 3", got.Generation)
	}
	if got.PeerPath != "/dev/pts/7" {
		t.Errorf("peer_path = %q, want /dev/pts/7", got.PeerPath)
	}
	if got.Commands != 42 {
		t.Errorf("commands_served = %d, want 42", got.Commands)
	}
}

func TestCommandsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/commands", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("commands status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Count    int            `json:"count"`
		Commands []commandEntry `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding commands body: %v", err)
	}
	if body.Count != 3 {
		t.Fatalf("count = %d, want 3", body.Count)
	}
	if body.Commands[0].Pattern != "AT" {
		t.Errorf("first pattern = %q, want AT", body.Commands[0].Pattern)
	}
	if !body.Commands[2].HasArg {
		t.Errorf("AT+CSQ={arg} entry should report has_arg")
	}
	if body.Commands[2].DelayMS != 10 {
		t.Errorf("delay_ms = %d, want 10", body.Commands[2].DelayMS)
	}
}

func TestEventsEndpointWithoutTranscript(t *testing.T) {
	srv := newTestServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("events status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var apiErr Error
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if apiErr.Code != ErrCodeUnavailable {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeUnavailable)
	}
}

func TestEventsEndpointRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=banana", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("events status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want the requesting origin", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for unknown origin", got)
	}
}
