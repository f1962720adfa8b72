package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"

	"kavitanotes/internal/config"
	"kavitanotes/internal/kavita"
	"kavitanotes/internal/logger"
	"kavitanotes/internal/response"
	"kavitanotes/internal/server"
	"kavitanotes/internal/storage/runs"
	"kavitanotes/internal/syncer"
	"kavitanotes/internal/vault"
)

func getBoolEnv(key string) bool {
	if val := strings.ToLower(os.Getenv(key)); val == "yes" || val == "on" || val == "true" {
		return true
	}

	return false
}

var (
	configPath = os.Getenv("CONFIG_PATH")
	debugMode  = getBoolEnv("DEBUG_MODE")
)

func main() {
	_, thisFile, _, _ := runtime.Caller(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration: " + err.Error())
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration: " + err.Error())
		os.Exit(1)
	}

	lvl, _ := logger.ParseLevel(cfg.Logging.Level)
	if err := logger.SetupSLog(lvl, cfg.Logging.Format, path.Dir(path.Dir(path.Dir(thisFile))), middleware.RequestIDKey); err != nil {
		slog.Error("Failed to set up logging: " + err.Error())
		os.Exit(1)
	}

	runRepo, closeRuns, err := runs.Open(context.Background(), cfg.Storage.DatabaseUrl, slog.Default())
	if err != nil {
		slog.Error("Failed to open run store: " + err.Error())
		os.Exit(1)
	}

	client, err := kavita.NewClient(cfg.KavitaOptions(), slog.Default())
	if err != nil {
		slog.Error("Failed to create kavita client: " + err.Error())
		os.Exit(1)
	}

	svc := syncer.New(client, vault.NewFileStore("", slog.Default()), runRepo, slog.Default())

	defaults := syncer.Request{
		Path:           cfg.Output.Path,
		Options:        cfg.DocumentOptions(),
		SeriesMetadata: cfg.Format.SeriesMetadataFallback,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Mount("/api", server.Handler(
		svc,
		runRepo,
		defaults,
		&response.Responder{DebugMode: debugMode, Classify: server.Classify},
	))

	slog.Info("Listening on " + cfg.Server.BindAddr)
	err = http.ListenAndServe(cfg.Server.BindAddr, r)

	_ = closeRuns()
	slog.Error("aborting: " + err.Error())
	os.Exit(1)
}
