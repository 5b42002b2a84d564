package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dn5s/lthread/internal/config"
	"github.com/dn5s/lthread/internal/logger"
	"github.com/dn5s/lthread/internal/router"
	"github.com/dn5s/lthread/internal/setup"
)

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "config", "path to folder with configs")
	flag.Parse()

	// .env is optional, for local development only
	_ = godotenv.Load()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.LogLevel, cfg.Public.LogJSON)

	deps, err := setup.SetupDependencies(cfg)
	if err != nil {
		logger.Log.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Storage.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps.Pruner.Start(ctx)

	r := router.New(deps)

	httpPort := os.Getenv("PORT")
	if httpPort == "" {
		httpPort = "8080"
	}

	server := &http.Server{Addr: ":" + httpPort, Handler: r}
	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down")
		server.Shutdown(context.Background())
	}()

	logger.Log.Info("server started", "port", httpPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
