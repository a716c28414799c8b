// @title                       Access Code Service API
// @version                     1.0
// @description                 Issues, rotates and consumes single-use registration codes for privileged roles.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmledger/access-codes/internal/api"
	"github.com/farmledger/access-codes/internal/core/ports"
	"github.com/farmledger/access-codes/internal/core/service"
	"github.com/farmledger/access-codes/internal/infrastructure/db/redis"
	"github.com/farmledger/access-codes/internal/infrastructure/http/handlers"
	"github.com/farmledger/access-codes/internal/infrastructure/queue"
	"github.com/farmledger/access-codes/internal/pkg/config"
	"github.com/farmledger/access-codes/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Pretty(),
		Service: "access-codes",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store initialisation failed")
	}

	checks := map[string]handlers.Check{}
	if st.check != nil {
		checks[cfg.StoreDriver] = st.check
	}

	var limiter ports.AttemptLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()
		limiter = redis.NewAttemptLimiter(rdb, cfg.Throttle.MaxAttempts, cfg.Throttle.Window)
		checks["redis"] = handlers.RedisCheck(rdb)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, access code throttling disabled")
	}

	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, cfg.Audit.Buffer, st.audit, logger.Component("audit"))
	dispatcher.Start(ctx)

	issuance := service.NewIssuanceService(st.codes, st.tx, dispatcher, logger.Component("issuance"))
	consumption := service.NewConsumptionService(st.codes, issuance, dispatcher, logger.Component("consumption"), nil)
	query := service.NewQueryService(st.codes, nil)
	auth := service.NewAuthService(st.users, consumption, cfg.ManagerSecret, cfg.JWTSecret, cfg.TokenTTL, logger.Component("auth"))

	if cfg.ManagerSecret == "" {
		log.Warn().Msg("MANAGER_SECRET not set, manager self-registration disabled")
	}

	proxies, err := cfg.ProxyRanges()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid trusted proxies")
	}

	e := api.NewRouter(api.Deps{
		JWTSecret:      cfg.JWTSecret,
		Issuance:       issuance,
		Consumption:    consumption,
		Query:          query,
		Auth:           auth,
		Limiter:        limiter,
		TrustedProxies: proxies,
		Checks:         checks,
		Registerer:     prometheus.DefaultRegisterer,
		Log:            log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("audit queue did not drain")
	}
	st.close(shutdownCtx)
}
