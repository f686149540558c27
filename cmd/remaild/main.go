// Command remaild runs the inbound SMTP server and the listing API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vieiralucas/remail"
	"github.com/vieiralucas/remail/api"
	"github.com/vieiralucas/remail/internal/config"
	"github.com/vieiralucas/remail/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("remaild exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	smtpServer, err := remail.NewServer(remail.ServerConfig{
		Hostname:      cfg.SMTP.Hostname,
		Addr:          cfg.SMTP.Listen,
		MaxLineLength: cfg.SMTP.MaxLineLength,
		ReverseDNS:    cfg.SMTP.ReverseDNS,
		Logger:        logger,
	}, store.AsPersistor(st))
	if err != nil {
		return err
	}

	apiServer := api.New(st, cfg.HTTP.Listen, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("SMTP server started",
			slog.String("addr", cfg.SMTP.Listen),
			slog.String("hostname", cfg.SMTP.Hostname))
		if err := smtpServer.ListenAndServe(); !errors.Is(err, remail.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return smtpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return apiServer.ListenAndServe(ctx)
	})

	return g.Wait()
}

func openStore(cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.OpenSQLite(cfg.Path)
	case "spool":
		return store.OpenSpool(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
