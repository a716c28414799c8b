package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/farmledger/access-codes/internal/api/metrics"
	"github.com/farmledger/access-codes/internal/core/domain"
	"github.com/farmledger/access-codes/internal/core/ports"
)

// Throttle limits rejected access code attempts per client IP. Each request
// reserves an attempt before the handler runs, and a key over budget is
// refused with domain.ErrTooManyAttempts. Rejections of the presented code
// keep their reservation, a successful request clears the key and any other
// outcome hands the attempt back. Limiter outages fail open.
func Throttle(limiter ports.AttemptLimiter, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := c.RealIP()

			if err := limiter.Acquire(ctx, key); err != nil {
				if errors.Is(err, domain.ErrTooManyAttempts) {
					metrics.ConsumptionRejectionsTotal.WithLabelValues("throttled").Inc()
					log.Warn().Str("ip", key).Str("path", c.Path()).Msg("access code attempts throttled")
					return err
				}
				log.Warn().Err(err).Msg("attempt limiter unavailable, allowing request")
				return next(c)
			}

			err := next(c)
			switch {
			case err == nil:
				if rerr := limiter.Reset(ctx, key); rerr != nil {
					log.Warn().Err(rerr).Msg("attempt limiter reset failed")
				}
			case !domain.IsAuthenticationError(err):
				if rerr := limiter.Release(ctx, key); rerr != nil {
					log.Warn().Err(rerr).Msg("attempt limiter release failed")
				}
			}
			return err
		}
	}
}
