package server

import (
	"context"
	"log/slog"

	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/tariff"
)

// ConnectTariffs opens the tariff store described by cfg and checks it responds. An empty
// DSN returns (nil, nil): reviews then report tariff checks as could-not-verify.
func ConnectTariffs(ctx context.Context, cfg common.TariffConfig, logger *slog.Logger) (*tariff.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Warn("tariff store not configured; tariff checks will be unverifiable")
		return nil, nil
	}

	store, err := tariff.Open(ctx, tariff.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
		DialTimeout:     cfg.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to tariff store", "error", err)
		return nil, common.Unavailable("TARIFF_UNAVAILABLE", "tariff store open", err)
	}
	if err := store.Ping(ctx, cfg.DialTimeout); err != nil {
		_ = store.Close()
		logger.Error("tariff store health failed", "error", err)
		return nil, common.Unavailable("TARIFF_UNAVAILABLE", "tariff store ping", err)
	}
	logger.Info("successfully connected to tariff store")
	return store, nil
}
