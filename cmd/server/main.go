package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/backend"
	"github.com/sirosfoundation/go-chat-backend/internal/server"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
	"github.com/sirosfoundation/go-chat-backend/pkg/logging"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile    = flag.String("env-file", ".env", "Optional dotenv file loaded before the environment is read")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 after a signal, 1 on any fatal
// condition
func run() int {
	flag.Parse()

	boot := logging.Bootstrap()
	defer func() { _ = boot.Sync() }()

	// Variables already in the environment win over the dotenv file
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		boot.Error("Failed to read env file", zap.String("path", *envFile), zap.Error(err))
		return 1
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		boot.Error("Failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := logging.NewLogger(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		boot.Error("Failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Chat Backend Server",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("environment", cfg.Server.Environment),
	)

	store, err := backend.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize storage backend", zap.Error(err))
		return 1
	}

	app := server.NewApp(cfg, store, logger)
	srv := server.New(cfg, app, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server terminated", zap.Stringer("state", srv.State()), zap.Error(err))
		return 1
	}

	logger.Info("Server exited")
	return 0
}
