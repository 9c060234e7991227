package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/recordlock/pkg/config"
	"github.com/nimburion/recordlock/pkg/health"
	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/observability/logger"
	obsmetrics "github.com/nimburion/recordlock/pkg/observability/metrics"
	"github.com/nimburion/recordlock/pkg/server/router/gorilla"
	"github.com/nimburion/recordlock/pkg/version"
)

func newManagement(t *testing.T, load bool) (*ManagementServer, *gorilla.Router, *locking.Manager) {
	t.Helper()
	resolver, err := locking.NewPolicyResolver(locking.StaticSource{
		{ObjectName: "Order", Enabled: true, Timeout: time.Minute},
	})
	if err != nil {
		t.Fatalf("NewPolicyResolver() error = %v", err)
	}
	manager, err := locking.NewManager(resolver)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if load {
		if err := manager.ReloadConfiguration(context.Background()); err != nil {
			t.Fatalf("ReloadConfiguration() error = %v", err)
		}
	}

	healthRegistry := health.NewRegistry()
	healthRegistry.Register(health.NewManagerChecker("lock-manager", manager))

	r := gorilla.NewRouter()
	cfg := config.DefaultConfig().Management
	cfg.Addr = "127.0.0.1:0"
	s := NewManagementServer(cfg, r, logger.NewNop(), manager, healthRegistry, obsmetrics.NewRegistry(), version.Current("recordlock"))
	return s, r, manager
}

func TestManagementServer_Endpoints(t *testing.T) {
	_, r, _ := newManagement(t, true)

	tests := []struct {
		method string
		path   string
		want   int
		body   string
	}{
		{http.MethodGet, "/health", http.StatusOK, `"healthy"`},
		{http.MethodGet, "/ready", http.StatusOK, `"lock-manager"`},
		{http.MethodGet, "/version", http.StatusOK, `"service":"recordlock"`},
		{http.MethodGet, "/locks", http.StatusOK, `"data":[]`},
		{http.MethodGet, "/policies", http.StatusOK, `"object_name":"Order"`},
		{http.MethodGet, "/metrics", http.StatusOK, "go_goroutines"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestManagementServer_ReadyBeforePoliciesLoad(t *testing.T) {
	_, r, _ := newManagement(t, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var result health.Report
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Status != health.StatusUnhealthy {
		t.Fatalf("status = %s", result.Status)
	}
}

func TestManagementServer_UnlockAttributesActor(t *testing.T) {
	_, r, manager := newManagement(t, true)
	manager.Lock(identity.WithActor(context.Background(), "alice"), "Order", "42")

	req := httptest.NewRequest(http.MethodDelete, "/locks/Order/42", nil)
	req.Header.Set("X-Actor", "ops-bob")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID response header")
	}
	if manager.LockCount() != 0 {
		t.Fatalf("LockCount() = %d", manager.LockCount())
	}
}

func TestManagementServer_StartAndShutdown(t *testing.T) {
	s, _, _ := newManagement(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	var addr string
	deadline := time.Now().Add(2 * time.Second)
	for {
		addr = s.Addr()
		if !strings.HasSuffix(addr, ":0") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StartFailsOnBadAddr(t *testing.T) {
	s := NewServer(Config{Addr: "256.0.0.1:bad"}, gorilla.NewRouter(), logger.NewNop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
