package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/http/controller"
	routes "github.com/tnqbao/gau-vm-orchestrator/http/route"
	infraPkg "github.com/tnqbao/gau-vm-orchestrator/infra"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/repository"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)
	ctx := context.Background()

	warnOpenSources(ctx, cfg, infra.Logger)

	if path := cfg.EnvConfig.RegistryFile; path != "" {
		err := registry.Watch(path, cfg.Registry, func(reg *registry.Registry, err error) {
			if err != nil {
				infra.Logger.ErrorWithContextf(ctx, err, "[Registry] Failed to reload %s, keeping previous snapshot: %v", path, err)
				return
			}
			infra.Logger.InfoWithContextf(ctx, "[Registry] Reloaded %s: %d regions, %d sizes", path, len(reg.Regions()), len(reg.Sizes()))
		})
		if err != nil {
			infra.Logger.ErrorWithContextf(ctx, err, "[Registry] Failed to watch %s: %v", path, err)
		}
	}

	ctrl := controller.NewController(cfg, infra, repo)

	router := routes.SetupRouter(ctrl)

	server := &http.Server{
		Addr:    ":" + cfg.EnvConfig.HTTPPort,
		Handler: router,
	}

	go func() {
		infra.Logger.InfoWithContextf(ctx, "HTTP Server started on :%s", cfg.EnvConfig.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Server forced to shutdown: %v", err)
	}
	if err := infra.Close(shutdownCtx); err != nil {
		log.Printf("Failed to close infra: %v", err)
	}
}

// warnOpenSources flags NSG rules open to the internet outside development.
func warnOpenSources(ctx context.Context, cfg *config.Config, logger *infraPkg.LoggerClient) {
	if cfg.EnvConfig.Environment.Mode == "development" {
		return
	}
	security := cfg.Registry.Snapshot().Settings().Security
	if slices.Contains(security.AllowedSSHSources, "*") {
		logger.WarningWithContextf(ctx, "[Registry] SSH is allowed from any source in %s mode", cfg.EnvConfig.Environment.Mode)
	}
	if slices.Contains(security.AllowedHTTPSources, "*") {
		logger.WarningWithContextf(ctx, "[Registry] HTTP is allowed from any source in %s mode", cfg.EnvConfig.Environment.Mode)
	}
}
