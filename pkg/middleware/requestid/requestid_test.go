package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/server/router"
	"github.com/nimburion/recordlock/pkg/server/router/gorilla"
)

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	r := gorilla.NewRouter()
	r.Use(RequestID())
	r.Handle(http.MethodGet, "/locks", func(c router.Context) error {
		seen, _ = identity.RequestID(c.Request().Context())
		return c.JSON(http.StatusOK, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/locks", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, seen
}

func TestRequestID_GeneratesUUID(t *testing.T) {
	rec, seen := serve(t, "")
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected generated UUID, got %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Fatalf("response header = %q, context = %q", got, seen)
	}
}

func TestRequestID_PreservesIncoming(t *testing.T) {
	rec, seen := serve(t, "req-123")
	if seen != "req-123" {
		t.Fatalf("context request id = %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Fatalf("response header = %q", got)
	}
}
