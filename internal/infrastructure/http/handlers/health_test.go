package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func TestLiveness(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func readiness(t *testing.T, checks map[string]Check) (int, readinessResponse) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)

	if err := NewHealthDependenciesHandler(checks).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec.Code, resp
}

func TestReadiness_AllHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	code, resp := readiness(t, map[string]Check{
		"store": func(context.Context) error { return nil },
		"redis": RedisCheck(rdb),
	})

	if code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("expected ok, got %d %+v", code, resp)
	}
	if resp.Dependencies["redis"].Status != "ok" {
		t.Fatalf("unexpected redis status: %+v", resp.Dependencies["redis"])
	}
}

func TestReadiness_Degraded(t *testing.T) {
	code, resp := readiness(t, map[string]Check{
		"store": func(context.Context) error { return errors.New("no reachable servers") },
		"redis": func(context.Context) error { return nil },
	})

	if code != http.StatusServiceUnavailable || resp.Status != "degraded" {
		t.Fatalf("expected degraded, got %d %+v", code, resp)
	}
	if dep := resp.Dependencies["store"]; dep.Status != "unhealthy" || dep.Error != "no reachable servers" {
		t.Fatalf("unexpected store status: %+v", dep)
	}
	if resp.Dependencies["redis"].Status != "ok" {
		t.Fatalf("healthy dependency reported as %+v", resp.Dependencies["redis"])
	}
}

func TestReadiness_NoDependencies(t *testing.T) {
	code, resp := readiness(t, nil)
	if code != http.StatusOK || len(resp.Dependencies) != 0 {
		t.Fatalf("expected ok with no dependencies, got %d %+v", code, resp)
	}
}
