package api

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"rhonull/adapters/rng"
	"rhonull/app"
	"rhonull/internal/config"
)

// Serve wires the service from cfg and serves until ctx is cancelled, then
// shuts the server down within the configured timeout.
func Serve(ctx context.Context, cfg *config.Config) error {
	gin.SetMode(cfg.Server.GinMode)

	rngAdapter := rng.NewAdapter()
	rngAdapter.Verbose = cfg.Simulation.VerboseRNG
	service := app.NewNullDistributionService(rngAdapter, cfg.Simulation.Workers)
	server := NewServer(service, cfg.Simulation)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + cfg.Server.Port)
	}()
	log.Printf("[API] Null distribution service ready (workers=%d, default iterations=%d)",
		service.Workers(), cfg.Simulation.DefaultIterations)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
