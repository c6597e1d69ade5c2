package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pnr_tracker/internal/infra/config"
	"pnr_tracker/internal/infra/httpapi"
	"pnr_tracker/internal/infra/logger"
	"pnr_tracker/internal/infra/telegram"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand runs the scheduler, the HTTP API and the Telegram bot until a signal arrives.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"store":       cfg.StoreDriver,
		"cron":        cfg.ReconcileCron,
	}).Info("PNR tracker starting...")

	c, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.scheduler.Start(); err != nil {
		return err
	}

	if cfg.Environment == "production" || cfg.Environment == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httpapi.NewHandler(c.subscriptions, c.reconciler, logger.Component(log, "httpapi"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, c.metrics.Handler(), logger.Component(log, "httpapi")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if c.bot != nil {
		telegram.RegisterBotCommands(c.bot, c.fetcher, logger.Component(log, "telegram"))
		go c.bot.Start()
		log.Info("Telegram bot started.")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down application...")
	case err = <-serverErr:
		log.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Warn("HTTP server did not shut down cleanly")
	}
	if c.bot != nil {
		c.bot.Stop()
	}
	c.scheduler.Stop()
	if errWait := c.subscriptions.Wait(shutdownCtx); errWait != nil {
		log.WithError(errWait).Warn("Pending subscription confirmations were abandoned")
	}
	log.Info("Application shut down gracefully.")
	return err
}
