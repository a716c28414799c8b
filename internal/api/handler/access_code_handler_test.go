package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

type stubIssuance struct {
	generateFn func(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error)
	revokeFn   func(ctx context.Context, code, actor string) error
}

func (s *stubIssuance) Generate(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error) {
	return s.generateFn(ctx, role, issuer)
}

func (s *stubIssuance) Revoke(ctx context.Context, code, actor string) error {
	return s.revokeFn(ctx, code, actor)
}

type stubConsumption struct {
	consumeFn func(ctx context.Context, in ports.ConsumeInput) (*ports.ConsumptionResult, error)
}

func (s *stubConsumption) ValidateAndConsume(ctx context.Context, in ports.ConsumeInput) (*ports.ConsumptionResult, error) {
	return s.consumeFn(ctx, in)
}

type stubQuery struct {
	active  []ports.ActiveAccessCode
	history []*domain.AccessCode
	lastQ   ports.HistoryQuery
}

func (s *stubQuery) ListActive(context.Context) ([]ports.ActiveAccessCode, error) {
	return s.active, nil
}

func (s *stubQuery) ListHistory(_ context.Context, q ports.HistoryQuery) ([]*domain.AccessCode, error) {
	s.lastQ = q
	return s.history, nil
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func asManager(c echo.Context) echo.Context {
	c.Set("role", "manager")
	c.Set("email", "mgr@example.com")
	c.Set("sub", "u-mgr")
	return c
}

func TestAccessCodeHandler_Generate(t *testing.T) {
	e := newTestEcho()
	issuance := &stubIssuance{
		generateFn: func(ctx context.Context, role domain.Role, issuer string) (*domain.AccessCode, error) {
			if role != domain.RoleFieldOfficer || issuer != "mgr@example.com" {
				t.Fatalf("unexpected args: %s %s", role, issuer)
			}
			return &domain.AccessCode{
				Role: role, Code: "7A8B9C2D", Status: domain.CodeActive,
				CreatedAt: t0, ExpiresAt: t0.Add(domain.CodeTTL), CreatedBy: issuer,
			}, nil
		},
	}
	h := NewAccessCodeHandler(issuance, nil, nil)

	rec := httptest.NewRecorder()
	c := asManager(e.NewContext(jsonRequest(http.MethodPost, "/v1/access-codes", `{"role":"Field_Officer"}`), rec))

	if err := h.Generate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["code"] != "7A8B9C2D" || resp["status"] != "active" || resp["role"] != "field_officer" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if resp["expires_at"] != "2026-03-02T09:00:00Z" {
		t.Fatalf("unexpected expires_at: %v", resp["expires_at"])
	}
}

func TestAccessCodeHandler_Generate_Validation(t *testing.T) {
	tests := map[string]string{
		"missing role": `{}`,
		"unknown role": `{"role":"janitor"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			e := newTestEcho()
			issuance := &stubIssuance{
				generateFn: func(context.Context, domain.Role, string) (*domain.AccessCode, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}
			h := NewAccessCodeHandler(issuance, nil, nil)
			c := asManager(e.NewContext(jsonRequest(http.MethodPost, "/v1/access-codes", body), httptest.NewRecorder()))

			if err := h.Generate(c); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAccessCodeHandler_Generate_RequiresManagerClaims(t *testing.T) {
	e := newTestEcho()
	h := NewAccessCodeHandler(&stubIssuance{}, nil, nil)

	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/access-codes", `{"role":"finance"}`), httptest.NewRecorder())
	var he *echo.HTTPError
	if err := h.Generate(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	c = e.NewContext(jsonRequest(http.MethodPost, "/v1/access-codes", `{"role":"finance"}`), httptest.NewRecorder())
	c.Set("role", "finance")
	if err := h.Generate(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAccessCodeHandler_Revoke(t *testing.T) {
	e := newTestEcho()
	var gotCode, gotActor string
	issuance := &stubIssuance{
		revokeFn: func(ctx context.Context, code, actor string) error {
			gotCode, gotActor = code, actor
			if code == "CODE-NOT-ACTIVE" {
				return domain.ErrAccessCodeNotFound
			}
			return nil
		},
	}
	h := NewAccessCodeHandler(issuance, nil, nil)

	rec := httptest.NewRecorder()
	c := asManager(e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec))
	c.SetParamNames("code")
	c.SetParamValues("7A8B9C2D")

	if err := h.Revoke(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if gotCode != "7A8B9C2D" || gotActor != "mgr@example.com" {
		t.Fatalf("unexpected args: %s %s", gotCode, gotActor)
	}

	c = asManager(e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder()))
	c.SetParamNames("code")
	c.SetParamValues("CODE-NOT-ACTIVE")
	if err := h.Revoke(c); !errors.Is(err, domain.ErrAccessCodeNotFound) {
		t.Fatalf("expected ErrAccessCodeNotFound, got %v", err)
	}
}

func TestAccessCodeHandler_Consume(t *testing.T) {
	e := newTestEcho()
	consumption := &stubConsumption{
		consumeFn: func(ctx context.Context, in ports.ConsumeInput) (*ports.ConsumptionResult, error) {
			if in.Role != domain.RoleFinance || in.Code != "7a8b9c2d" || in.ConsumerIdentity != "ana@example.com" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.ConsumptionResult{
				Consumed: &domain.AccessCode{Role: domain.RoleFinance, Code: "7A8B9C2D", Status: domain.CodeUsed},
				Next:     &domain.AccessCode{Role: domain.RoleFinance, Code: "11223344", Status: domain.CodeActive},
			}, nil
		},
	}
	h := NewAccessCodeHandler(nil, consumption, nil)

	rec := httptest.NewRecorder()
	body := `{"role":"finance","code":"7a8b9c2d","consumer_identity":"ana@example.com"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/access-codes/consume", body), rec)

	if err := h.Consume(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["valid"] != true {
		t.Fatalf("expected valid=true, got %+v", resp)
	}
	if _, leaked := resp["code"]; leaked {
		t.Fatalf("consumption must not reveal the next code: %+v", resp)
	}
}

func TestAccessCodeHandler_Consume_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want error
	}{
		{"invalid code", `{"role":"finance","code":"00000000","consumer_identity":"x"}`, domain.ErrInvalidAccessCode, domain.ErrInvalidAccessCode},
		{"expired code", `{"role":"finance","code":"00000000","consumer_identity":"x"}`, domain.ErrAccessCodeExpired, domain.ErrAccessCodeExpired},
		{"missing code", `{"role":"finance","consumer_identity":"x"}`, nil, domain.ErrInvalidInput},
		{"unknown role", `{"role":"admin","code":"00000000","consumer_identity":"x"}`, nil, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			consumption := &stubConsumption{
				consumeFn: func(context.Context, ports.ConsumeInput) (*ports.ConsumptionResult, error) {
					if tt.err == nil {
						t.Fatalf("should not be called")
					}
					return nil, tt.err
				},
			}
			h := NewAccessCodeHandler(nil, consumption, nil)
			c := e.NewContext(jsonRequest(http.MethodPost, "/v1/access-codes/consume", tt.body), httptest.NewRecorder())

			if err := h.Consume(c); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAccessCodeHandler_ListActive(t *testing.T) {
	e := newTestEcho()
	query := &stubQuery{active: []ports.ActiveAccessCode{{
		Role: domain.RoleFinance, Code: "7A8B9C2D", Status: domain.CodeActive,
		CreatedAt: t0, ExpiresAt: t0.Add(domain.CodeTTL), TimeRemaining: 90*time.Minute + 500*time.Millisecond,
	}}}
	h := NewAccessCodeHandler(nil, nil, query)

	rec := httptest.NewRecorder()
	c := asManager(e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/access-codes/active", nil), rec))

	if err := h.ListActive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0]["time_remaining_seconds"] != float64(5400) {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAccessCodeHandler_ListActive_EmptyIsArray(t *testing.T) {
	e := newTestEcho()
	h := NewAccessCodeHandler(nil, nil, &stubQuery{})

	rec := httptest.NewRecorder()
	c := asManager(e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/access-codes/active", nil), rec))

	if err := h.ListActive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestAccessCodeHandler_ListHistory(t *testing.T) {
	e := newTestEcho()
	usedBy := "ana@example.com"
	usedAt := t0.Add(time.Hour)
	query := &stubQuery{history: []*domain.AccessCode{
		{Role: domain.RoleFinance, Code: "7A8B9C2D", Status: domain.CodeUsed, CreatedAt: t0, ExpiresAt: t0.Add(domain.CodeTTL), UsedAt: &usedAt, UsedBy: &usedBy},
	}}
	h := NewAccessCodeHandler(nil, nil, query)

	rec := httptest.NewRecorder()
	c := asManager(e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/access-codes/history?limit=5&role=FINANCE&status=used", nil), rec))

	if err := h.ListHistory(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if query.lastQ.Limit != 5 || query.lastQ.Role != domain.RoleFinance || query.lastQ.Status != domain.CodeUsed {
		t.Fatalf("unexpected query: %+v", query.lastQ)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0]["used_by"] != usedBy {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAccessCodeHandler_ListHistory_BadLimit(t *testing.T) {
	e := newTestEcho()
	h := NewAccessCodeHandler(nil, nil, &stubQuery{})

	c := asManager(e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/access-codes/history?limit=abc", nil), httptest.NewRecorder()))

	var he *echo.HTTPError
	if err := h.ListHistory(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
