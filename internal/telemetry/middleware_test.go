package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusRecorderCapturesExplicitCode(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}

	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusInternalServerError) // ignored, headers already sent
	if _, err := rec.Write([]byte("short and stout")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if rec.status != http.StatusTeapot {
		t.Fatalf("expected recorded status 418, got %d", rec.status)
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected underlying status 418, got %d", rr.Code)
	}
}

func TestStatusRecorderDefaultsToOKOnWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}

	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.status != http.StatusOK {
		t.Fatalf("expected implicit 200, got %d", rec.status)
	}
}

func TestMetricsMiddlewarePassesRequestThrough(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from wrapped handler, got %d", rr.Code)
	}
}
