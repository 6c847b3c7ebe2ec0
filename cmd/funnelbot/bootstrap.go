package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/config"
	"github.com/yanizio/geofunnel/internal/database"
	"github.com/yanizio/geofunnel/internal/geo"
	"github.com/yanizio/geofunnel/internal/store"
	"github.com/yanizio/geofunnel/internal/vault"
)

// env is what every subcommand needs: config with secrets resolved and an
// open repository.
type env struct {
	cfg   *config.Config
	db    *sqlx.DB
	store *store.Store
}

func (e *env) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

// bootstrap loads configuration, resolves vault references, and opens the
// database.
func bootstrap(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if config.NeedsVault(cfg) {
		vc, err := vault.New(ctx, zap.L())
		if err != nil {
			return nil, err
		}
		if err := config.ResolveSecrets(ctx, cfg, vc); err != nil {
			return nil, err
		}
		zap.S().Infow("secrets resolved from vault")
	}

	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database.Driver, err)
	}
	zap.S().Infow("database online", "driver", cfg.Database.Driver)

	return &env{cfg: cfg, db: db, store: store.New(db)}, nil
}

// buildLocator assembles the provider chain in configured order.  The
// returned closer releases local databases.
func buildLocator(c config.Geo) (geo.Chain, func(), error) {
	var (
		chain   geo.Chain
		closers []func()
	)
	closeAll := func() {
		for _, f := range closers {
			f()
		}
	}

	for _, name := range c.Providers {
		switch name {
		case "ipinfo":
			chain = append(chain, geo.NewIPInfo(c.IPInfoURL, c.IPInfoToken, c.Timeout))
		case "maxmind":
			mm, err := geo.OpenMaxMind(c.MaxMindDB)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { mm.Close() })
			chain = append(chain, mm)
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown geo provider %q", name)
		}
	}
	return chain, closeAll, nil
}
