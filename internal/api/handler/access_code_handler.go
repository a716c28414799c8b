package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/farmledger/access-codes/internal/api/metrics"
	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

// AccessCodeHandler serves the manager-facing access code endpoints and the
// public consumption endpoint. Errors are returned to the central error
// handler.
type AccessCodeHandler struct {
	issuance    ports.IssuanceService
	consumption ports.ConsumptionService
	query       ports.QueryService
}

func NewAccessCodeHandler(
	issuance ports.IssuanceService,
	consumption ports.ConsumptionService,
	query ports.QueryService,
) *AccessCodeHandler {
	return &AccessCodeHandler{issuance: issuance, consumption: consumption, query: query}
}

// Generate handles POST /v1/access-codes.
//
// @Summary      Generate an access code
// @Description  Supersedes the role's active code and mints a new one valid for 24 hours.
// @Tags         access-codes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      generateRequest  true  "Target role (field_officer or finance)"
// @Success      201   {object}  accessCodeResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /v1/access-codes [post]
func (h *AccessCodeHandler) Generate(c echo.Context) error {
	issuer, err := managerIdentity(c)
	if err != nil {
		return err
	}

	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}

	code, err := h.issuance.Generate(c.Request().Context(), role, issuer)
	if err != nil {
		return err
	}

	metrics.CodesIssuedTotal.WithLabelValues(string(code.Role), "manager").Inc()
	return c.JSON(http.StatusCreated, toAccessCodeResponse(code))
}

// ListActive handles GET /v1/access-codes/active.
//
// @Summary      List active access codes
// @Tags         access-codes
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   activeCodeResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /v1/access-codes/active [get]
func (h *AccessCodeHandler) ListActive(c echo.Context) error {
	active, err := h.query.ListActive(c.Request().Context())
	if err != nil {
		return err
	}

	resp := make([]activeCodeResponse, 0, len(active))
	for _, a := range active {
		resp = append(resp, toActiveCodeResponse(a))
	}
	return c.JSON(http.StatusOK, resp)
}

// ListHistory handles GET /v1/access-codes/history.
//
// @Summary      Access code history
// @Description  All records newest first, optionally filtered by role and status.
// @Tags         access-codes
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int     false  "Maximum records (default 50, max 200)"
// @Param        role    query     string  false  "Filter by role"
// @Param        status  query     string  false  "Filter by status (active, expired, used)"
// @Success      200     {array}   accessCodeResponse
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Failure      403     {object}  map[string]string
// @Router       /v1/access-codes/history [get]
func (h *AccessCodeHandler) ListHistory(c echo.Context) error {
	q := ports.HistoryQuery{Status: domain.CodeStatus(c.QueryParam("status"))}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		q.Limit = limit
	}
	if raw := c.QueryParam("role"); raw != "" {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return err
		}
		q.Role = role
	}

	codes, err := h.query.ListHistory(c.Request().Context(), q)
	if err != nil {
		return err
	}

	resp := make([]accessCodeResponse, 0, len(codes))
	for _, code := range codes {
		resp = append(resp, toAccessCodeResponse(code))
	}
	return c.JSON(http.StatusOK, resp)
}

// Revoke handles DELETE /v1/access-codes/:code.
//
// @Summary      Revoke an active access code
// @Tags         access-codes
// @Security     BearerAuth
// @Param        code  path  string  true  "Access code (e.g. 7A8B9C2D)"
// @Success      204
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/access-codes/{code} [delete]
func (h *AccessCodeHandler) Revoke(c echo.Context) error {
	actor, err := managerIdentity(c)
	if err != nil {
		return err
	}

	if err := h.issuance.Revoke(c.Request().Context(), c.Param("code"), actor); err != nil {
		return err
	}

	metrics.CodesRevokedTotal.Inc()
	return c.NoContent(http.StatusNoContent)
}

// Consume handles POST /v1/access-codes/consume.
//
// @Summary      Validate and consume an access code
// @Description  Single use. A successful consumption rotates the role's code.
// @Tags         access-codes
// @Accept       json
// @Produce      json
// @Param        body  body      consumeRequest  true  "Presented role and code"
// @Success      200   {object}  consumeResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /v1/access-codes/consume [post]
func (h *AccessCodeHandler) Consume(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.ConsumptionDuration.Observe(time.Since(start).Seconds()) }()

	var req consumeRequest
	if err := c.Bind(&req); err != nil {
		metrics.ConsumptionRejectionsTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.ConsumptionRejectionsTotal.WithLabelValues("bad_request").Inc()
		return err
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		metrics.ConsumptionRejectionsTotal.WithLabelValues("bad_request").Inc()
		return err
	}

	res, err := h.consumption.ValidateAndConsume(c.Request().Context(), ports.ConsumeInput{
		Role:             role,
		Code:             req.Code,
		ConsumerIdentity: req.ConsumerIdentity,
	})
	if err != nil {
		metrics.ConsumptionRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
		return err
	}

	recordConsumption(res)
	return c.JSON(http.StatusOK, consumeResponse{Valid: true, Role: string(res.Consumed.Role)})
}

// recordConsumption counts a successful consumption and its rotation.
func recordConsumption(res *ports.ConsumptionResult) {
	role := string(res.Consumed.Role)
	metrics.CodesConsumedTotal.WithLabelValues(role).Inc()
	if res.Next != nil {
		metrics.CodesIssuedTotal.WithLabelValues(role, "rotation").Inc()
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccessCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidAccessCode):
		return "invalid"
	case errors.Is(err, domain.ErrInvalidInput):
		return "bad_request"
	default:
		return "error"
	}
}
