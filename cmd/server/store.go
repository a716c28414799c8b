package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/farmledger/access-codes/internal/core/ports"
	"github.com/farmledger/access-codes/internal/infrastructure/db/memory"
	"github.com/farmledger/access-codes/internal/infrastructure/db/mongo"
	"github.com/farmledger/access-codes/internal/infrastructure/db/postgres"
	"github.com/farmledger/access-codes/internal/infrastructure/http/handlers"
	"github.com/farmledger/access-codes/internal/pkg/config"
)

// store bundles the repositories of one driver.
type store struct {
	codes ports.AccessCodeRepository
	tx    ports.TxRunner
	users ports.AuthRepository
	audit ports.AuditRepository
	check handlers.Check
	close func(ctx context.Context)
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg, log)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		codes := memory.NewAccessCodeRepository()
		return &store{
			codes: codes,
			tx:    codes,
			users: memory.NewAuthRepository(),
			audit: memory.NewAuditRepository(),
			close: func(context.Context) {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	client, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "access-codes",
	})
	if err != nil {
		return nil, err
	}

	codes := mongo.NewAccessCodeRepository(db, cfg.Mongo.Transactions)
	users := mongo.NewAuthRepository(db)
	audit := mongo.NewAuditRepository(db)

	for name, ensure := range map[string]func(context.Context) error{
		"access_codes":       codes.EnsureIndexes,
		"auth_users":         users.EnsureIndexes,
		"access_code_events": audit.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	log.Info().Str("database", cfg.Mongo.Database).Bool("transactions", cfg.Mongo.Transactions).Msg("mongodb connected")

	return &store{
		codes: codes,
		tx:    codes,
		users: users,
		audit: audit,
		check: handlers.MongoCheck(db),
		close: func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				log.Error().Err(err).Msg("mongodb disconnect")
			}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	codes := postgres.NewAccessCodeRepository(pool)
	return &store{
		codes: codes,
		tx:    codes,
		users: postgres.NewAuthRepository(pool),
		audit: postgres.NewAuditRepository(pool),
		check: handlers.PostgresCheck(pool),
		close: func(context.Context) { pool.Close() },
	}, nil
}
