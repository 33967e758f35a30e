package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"formdwatch/internal/chat"
	"formdwatch/internal/config"
	"formdwatch/internal/dashboard"
	"formdwatch/internal/edgar"
	"formdwatch/internal/logger"
	"formdwatch/internal/session"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [--addr :8080]",
		Short: "Run the filings dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, newLogger(cfg))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func newAssistant(cfg *config.Config, log *logger.Logger) *chat.Assistant {
	if !cfg.Chat.Enabled {
		return nil
	}

	completer := chat.NewOpenAICompleter(cfg.Chat.BaseURL, cfg.Chat.Model, cfg.Chat.SystemPrompt, cfg.Chat.GetTimeout())

	return chat.NewAssistant(completer, cfg.Chat.MaxHistory, log)
}

// serve runs the dashboard until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store := session.NewStore(cfg.Server.SessionTTL)
	client := edgar.NewClient(cfg.Edgar, log)

	dash, err := dashboard.NewServer(*cfg, client, store, newAssistant(cfg, log), log)
	if err != nil {
		return fmt.Errorf("failed to build dashboard: %w", err)
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Server.SweepSchedule, func() {
		if n := store.Sweep(); n > 0 {
			log.Debug("expired sessions swept", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule: %w", err)
	}

	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	srv := dash.NewHTTPServer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("dashboard listening", "config", cfg.String())

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down", "sessions", store.Len())

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
