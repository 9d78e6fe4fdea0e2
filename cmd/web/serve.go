package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cattle-case-report/internal/adapters/casesapi/remote"
	mem "cattle-case-report/internal/adapters/storage/memory"
	"cattle-case-report/internal/domain/casereport"
	"cattle-case-report/internal/platform/config"
	"cattle-case-report/internal/platform/logger"
	"cattle-case-report/internal/router"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Levanta el servidor HTTP del formulario",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	backend, err := remote.NewClient(remote.Config{
		BaseURL: cfg.CasesAPIURL,
		Timeout: cfg.CasesAPITimeout,
	})
	if err != nil {
		return fmt.Errorf("cases api: %w", err)
	}

	svc := casereport.NewService(casereport.ServiceOptions{
		Sessions: mem.NewSessionRepo(),
		Backend:  backend,
		Previews: mem.NewPreviewRepo(),
		Rules:    casereport.Rules{RequireImages: cfg.RequireImages},
		Logger:   log,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: router.NewRouter(router.Options{
			Cases:          svc,
			Logger:         log,
			MaxUploadBytes: cfg.MaxUploadBytes,
			DiseasesWait:   cfg.CasesAPITimeout,
			SessionCookie:  cfg.SessionCookie,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		// Los uploads y el envío al backend pueden tardar.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: cfg.CasesAPITimeout + 30*time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", map[string]any{"addr": cfg.Addr, "cases_api": cfg.CasesAPIURL})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	// Cierra forms abandonados y libera sus previews.
	g.Go(func() error {
		t := time.NewTicker(sweepInterval(cfg.SessionIdleTTL))
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if _, err := svc.Sweep(gctx, cfg.SessionIdleTTL); err != nil {
					log.Warn("sweep failed", map[string]any{"error": err})
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Primero se cancelan los envíos en vuelo; después se drena el server.
		if err := svc.Shutdown(shutdownCtx); err != nil {
			log.Warn("forms shutdown failed", map[string]any{"error": err})
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func sweepInterval(ttl time.Duration) time.Duration {
	iv := ttl / 4
	if iv < time.Minute {
		iv = time.Minute
	}
	return iv
}

func newLogger(cfg config.Config) logger.Logger {
	return logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})
}
