package main

import (
	"fmt"
	"path/filepath"

	"github.com/neatdrive/simulator/internal/config"
	"github.com/neatdrive/simulator/internal/report"
	"github.com/neatdrive/simulator/internal/storage"
	"github.com/neatdrive/simulator/internal/storage/memory"
	pgstorage "github.com/neatdrive/simulator/internal/storage/postgres"
	sqlitestorage "github.com/neatdrive/simulator/internal/storage/sqlite"
	wsstorage "github.com/neatdrive/simulator/internal/storage/websocket"
)

// sqliteDumpPath is where the sqlite backend dumps its in-memory database.
func sqliteDumpPath(storageCfg config.StorageConfig) string {
	return filepath.Join(storageCfg.Memory.OutputDir,
		fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
}

func createStorageBackend(storageCfg config.StorageConfig, opts report.Options) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			LogManager: SlogManager,
		}), nil

	case "sqlite":
		dumpPath := sqliteDumpPath(storageCfg)
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, SlogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		if storageCfg.WebSocket.URL == "" {
			return nil, fmt.Errorf("storage.websocket.url is required for the websocket backend")
		}
		Logger.Info("WebSocket storage backend initialized", "url", storageCfg.WebSocket.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    storageCfg.WebSocket.URL,
			Secret: storageCfg.WebSocket.Secret,
		}, Logger.With("component", "websocket")), nil

	case "memory", "":
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory, opts), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// closeBackend closes backend and reports where an exporting backend left
// its run data.
func closeBackend(backend storage.Backend) {
	if err := backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
	if exp, ok := backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		Logger.Info("Run data written", "path", exp.ExportedFilePath())
	}
}
