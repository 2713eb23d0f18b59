package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestReadinessReportsFailingDependency(t *testing.T) {
	handler := NewHealthHandler(
		WithReadinessCheck("database", func(context.Context) error { return nil }),
		WithReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
		WithReadinessCheck("", nil),
	)

	engine := newTestEngine()
	engine.GET("/readyz", handler.Readiness)

	rr := doJSON(engine, http.MethodGet, "/readyz", "")

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	body := decode[ReadinessResponse](t, rr)
	if body.Status != "degraded" || body.Checks["database"] != "ok" || body.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected readiness %+v", body)
	}
	if len(body.Checks) != 2 {
		t.Fatalf("expected two checks, got %v", body.Checks)
	}
}

func TestReadinessWithoutChecks(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/readyz", NewHealthHandler().Readiness)

	if rr := doJSON(engine, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
