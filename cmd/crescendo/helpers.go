package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/crescendoapp/crescendo/internal/engine"
	"github.com/crescendoapp/crescendo/internal/issuer"
	"github.com/crescendoapp/crescendo/internal/reward"
	"github.com/crescendoapp/crescendo/internal/service"
	"github.com/crescendoapp/crescendo/internal/storage"
	"github.com/spf13/viper"
)

// initStorage opens the SQLite database and brings the schema current.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "crescendo", "crescendo.db")
	}
	dbPath = os.ExpandEnv(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// buildEngine assembles the evaluation pipeline around the given storage.
// Badge minting and artifact delivery go to the configured credential
// service, or run in-process when no endpoint is configured.
func buildEngine(store *storage.SQLiteStorage, opts ...engine.Option) *engine.Engine {
	var badges service.BadgeMinter
	var artifacts service.ArtifactDistributor

	if baseURL := viper.GetString("issuer.base_url"); baseURL != "" {
		client := issuer.NewHTTPClient(baseURL, viper.GetString("issuer.api_key"))
		badges, artifacts = client, client
	} else {
		slog.Debug("no issuer endpoint configured, using in-process issuer")
		local := issuer.NewLocal()
		badges, artifacts = local, local
	}

	distributor := reward.NewDistributor(store, badges, artifacts,
		reward.WithBonuses(bonusesFromConfig()))

	return engine.New(store, store, store, distributor, opts...)
}

// bonusesFromConfig reads the per-level artifact bonus map, e.g.
//
//	rewards:
//	  bonuses:
//	    "3": artifact-gold
//	    "5": artifact-supernova
func bonusesFromConfig() reward.BonusConfig {
	raw := viper.GetStringMapString("rewards.bonuses")
	if len(raw) == 0 {
		return nil
	}

	bonuses := make(reward.BonusConfig, len(raw))
	for levelStr, artifactID := range raw {
		level, err := strconv.Atoi(levelStr)
		if err != nil || level < 1 {
			slog.Warn("ignoring bonus with invalid rank level", "level", levelStr)
			continue
		}
		bonuses[level] = artifactID
	}
	return bonuses
}
