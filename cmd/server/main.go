package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/omega-sfx/omega-billing/internal/config"
	"github.com/omega-sfx/omega-billing/internal/db"
	"github.com/omega-sfx/omega-billing/internal/logger"
	"github.com/omega-sfx/omega-billing/internal/processor"
	"github.com/omega-sfx/omega-billing/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "omega-billing",
	Short: "OMEGA billing back office",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run DB migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		if _, err := db.ConnectAndMigrate(); err != nil {
			return err
		}
		log.Info().Msg("migrations completed")
		return nil
	},
}

func serve() error {
	cfg := config.Load()
	dbConn, err := db.ConnectAndMigrate()
	if err != nil {
		return err
	}

	proc := processor.NewStripeClient(cfg.StripeSecretKey, cfg.ProcessorTimeout)
	handler, err := server.New(dbConn, proc)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}
	go func() {
		log.Info().Str("env", cfg.Env).Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server gracefully stopped")
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		log.Fatal().Err(err).Msg("logger setup failed")
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
