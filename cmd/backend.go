package main

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/tigertix/internal/database"
	"github.com/Shivanand-hulikatti/tigertix/internal/repository"
	"github.com/Shivanand-hulikatti/tigertix/internal/service"
	"github.com/rs/zerolog"
)

// purchaseStore is the ledger side of a backend.
type purchaseStore interface {
	repository.Transactor
	service.PurchaseStore
}

// backend is one opened store with its repositories.
type backend struct {
	events    service.EventStore
	purchases purchaseStore
	ping      func(ctx context.Context) error
	close     func()
}

// openBackend connects to the configured database and, if migrate is set,
// brings its schema up to date.
func openBackend(ctx context.Context, cfg database.Config, log zerolog.Logger, migrate bool) (*backend, error) {
	if cfg.Driver == database.DriverPostgres {
		pool, err := database.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if migrate {
			if err := database.MigratePostgres(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &backend{
			events:    repository.NewEventRepository(pool),
			purchases: repository.NewPurchaseRepository(pool),
			ping:      pool.Ping,
			close:     pool.Close,
		}, nil
	}

	db, err := database.OpenGorm(cfg, log.With().Str("component", "gorm").Logger())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if migrate {
		if err := repository.MigrateGorm(ctx, db); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return &backend{
		events:    repository.NewGormEventRepository(db),
		purchases: repository.NewGormPurchaseRepository(db),
		ping:      sqlDB.PingContext,
		close:     func() { sqlDB.Close() },
	}, nil
}
