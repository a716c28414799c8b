package api

import (
	"net"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/farmledger/access-codes/internal/api/handler"
	"github.com/farmledger/access-codes/internal/api/middleware"
	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
	infrahttp "github.com/farmledger/access-codes/internal/infrastructure/http"
	"github.com/farmledger/access-codes/internal/infrastructure/http/handlers"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	JWTSecret   string
	Issuance    ports.IssuanceService
	Consumption ports.ConsumptionService
	Query       ports.QueryService
	Auth        ports.AuthService

	// Limiter throttles consume and register; nil disables throttling.
	Limiter ports.AttemptLimiter
	// TrustedProxies may set X-Forwarded-For. Without any, the client
	// address is the TCP peer.
	TrustedProxies []*net.IPNet
	// Checks feed the readiness probe, keyed by dependency name.
	Checks map[string]handlers.Check
	// Registerer receives the HTTP request metrics; nil skips them.
	Registerer prometheus.Registerer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = clientIPExtractor(d.TrustedProxies)
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	if d.Registerer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "http",
			Registerer: d.Registerer,
		}))
	}

	// --- Dependencies ---
	codes := handler.NewAccessCodeHandler(d.Issuance, d.Consumption, d.Query)
	auth := handler.NewAuthHandler(d.Auth)

	managerOnly := []echo.MiddlewareFunc{middleware.Auth(d.JWTSecret), middleware.RBAC(domain.RoleManager)}
	var throttled []echo.MiddlewareFunc
	if d.Limiter != nil {
		throttled = append(throttled, middleware.Throttle(d.Limiter, d.Log))
	}

	// --- Access code routes ---
	e.POST("/v1/access-codes", codes.Generate, managerOnly...)
	e.GET("/v1/access-codes/active", codes.ListActive, managerOnly...)
	e.GET("/v1/access-codes/history", codes.ListHistory, managerOnly...)
	e.DELETE("/v1/access-codes/:code", codes.Revoke, managerOnly...)
	e.POST("/v1/access-codes/consume", codes.Consume, throttled...)

	// --- Auth routes ---
	e.POST("/auth/register", auth.Register, throttled...)
	e.POST("/auth/login", auth.Login)

	// --- Health, metrics, docs (no auth required) ---
	infrahttp.RegisterOps(e, d.Checks)

	return e
}

// clientIPExtractor keys throttling and access logs. Forwarding headers are
// only honoured when the peer is one of the trusted proxies.
func clientIPExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range trusted {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
