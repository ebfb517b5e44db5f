package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	healthuc "github.com/kailas-cloud/ragworker/internal/usecase/health"
)

type stubHealth struct {
	report healthuc.Report
}

func (s stubHealth) Check(context.Context) healthuc.Report { return s.report }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		report     healthuc.Report
		wantStatus int
	}{
		{
			name: "healthy",
			report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{
				healthuc.ComponentBroker: healthuc.CheckOK,
			}},
			wantStatus: http.StatusOK,
		},
		{
			name: "degraded",
			report: healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{
				healthuc.ComponentBroker:      healthuc.CheckError,
				healthuc.ComponentVectorStore: healthuc.CheckOK,
			}},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unhealthy",
			report:     healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{}},
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(stubHealth{report: tt.report}, []string{"secret"}, zap.NewNop())
			rr := serve(router, "/health", "")

			if rr.Code != tt.wantStatus {
				t.Fatalf("got %d, want %d", rr.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.report.Status) {
				t.Errorf("expected status %q, got %q", tt.report.Status, resp.Status)
			}
			for k, v := range tt.report.Checks {
				if resp.Checks[k] != string(v) {
					t.Errorf("check %s: expected %q, got %q", k, v, resp.Checks[k])
				}
			}
			if rr.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(stubHealth{}, nil, zap.NewNop())
	rr := serve(router, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("expected default collectors in /metrics output")
	}
}

func TestVersionRequiresAuth(t *testing.T) {
	router := NewRouter(stubHealth{}, []string{"secret"}, zap.NewNop())

	if rr := serve(router, "/version", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("without token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	rr := serve(router, "/version", "Bearer secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("with token: got %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] == "" {
		t.Error("expected version")
	}
}

func TestNotFound(t *testing.T) {
	router := NewRouter(stubHealth{}, nil, zap.NewNop())
	rr := serve(router, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error, got %q", ct)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := serve(h, "/x", "")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != "internal_error" {
		t.Errorf("unexpected code %q", errResp.Code)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := NewServer(Config{ReadTimeout: time.Second, WriteTimeout: time.Second},
		NewRouter(stubHealth{report: healthuc.Report{Status: healthuc.Healthy}}, nil, zap.NewNop()),
		zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
