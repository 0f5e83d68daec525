package modes

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"zipstream/internal/archive"
	"zipstream/internal/ledger"
	"zipstream/internal/modes/validation"
	"zipstream/internal/server"
	"zipstream/pkg/config"
	"zipstream/pkg/logger"
	"zipstream/pkg/platform"
)

// RunServer serves archives until SIGINT or SIGTERM.
func RunServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Serve(ctx, cfg)
}

// Serve runs the HTTP server, and the admin endpoint when enabled, until ctx
// is done. In-flight downloads get cfg.Server.ShutdownTimeout to finish.
func Serve(ctx context.Context, cfg *config.Config) error {
	log := logger.WithField("mode", "server")

	log.Info("starting zipstream server",
		"address", cfg.GetServerAddress(),
		"platform", runtime.GOOS,
		"maxConcurrent", cfg.Archive.MaxConcurrent)

	p := platform.NewPlatform()
	if err := validation.NewPlatformValidator(p).ValidatePlatformRequirements(cfg.Archive); err != nil {
		return fmt.Errorf("platform requirements not met: %w", err)
	}

	var opts []archive.Option
	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(ctx, cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("failed to open transfer ledger: %w", err)
		}
		defer func() {
			if err := l.Close(); err != nil {
				log.Warn("failed to close transfer ledger", "error", err)
			}
		}()
		opts = append(opts, archive.WithRecorder(l))
		log.Info("recording transfers", "ledger", cfg.Ledger.Path)
	}

	httpServer := server.New(cfg, archive.New(cfg.Archive, p, opts...))
	lis, err := httpServer.Listen()
	if err != nil {
		return err
	}

	var admin *server.AdminServer
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Admin.Enabled {
		admin = server.NewAdminServer(cfg)
		adminLis, err := admin.Listen()
		if err != nil {
			_ = lis.Close()
			return err
		}
		g.Go(func() error { return admin.Serve(adminLis) })
	}

	g.Go(func() error { return httpServer.Serve(lis) })

	if admin != nil {
		admin.SetServing(true)
	}
	log.Info("server started successfully", "address", lis.Addr().String())

	g.Go(func() error {
		<-gctx.Done()
		log.Info("received shutdown signal, stopping server...")

		if admin != nil {
			admin.SetServing(false)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)

		if admin != nil {
			admin.Stop()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}
