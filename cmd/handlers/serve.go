package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notulio/internal/auth"
	"notulio/internal/cache"
	"notulio/internal/config"
	"notulio/internal/email"
	"notulio/internal/insights"
	"notulio/internal/logger"
	"notulio/internal/pipeline"
	"notulio/internal/scrape"
	"notulio/internal/server"
	"notulio/internal/store"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Notulio HTTP API server",
		Long: `Start the Notulio API server.

The server provides:
  - credential auth endpoints (sign-up, sign-in, verification, reset)
  - the article ingestion pipeline (extract + persist)
  - per-user article CRUD and full-text search

Examples:
  # Start server on the configured port (default 8080)
  notulio serve

  # Start on a custom port
  notulio serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	st, err := store.NewStore(cfg.Database.Directory)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	var mailer auth.Mailer
	if cfg.Email.APIKey != "" {
		timeout, _ := time.ParseDuration(cfg.Email.Timeout)
		mailer = email.NewSender(cfg.Email.APIKey, cfg.Email.BaseURL, cfg.Email.FromAddress, cfg.Email.FromName, timeout)
	} else {
		log.Warn("email delivery disabled: no API key configured")
	}

	authSvc, err := auth.NewService(st, mailer, cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTLDuration(), cfg.Auth.VerifyTTLDuration(), cfg.App.SiteURL)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	scrapeTimeout, _ := time.ParseDuration(cfg.Scraper.Timeout)
	var extractor scrape.Extractor
	if cfg.Scraper.APIKey != "" {
		extractor = scrape.NewClient(cfg.Scraper.APIKey, cfg.Scraper.BaseURL, scrapeTimeout)
	} else {
		log.Warn("no scraper API key configured, using local extractor")
		extractor = scrape.NewLocal(scrapeTimeout)
	}

	generator, err := insights.NewClient(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model,
		cfg.AI.Gemini.Temperature, cfg.AI.Gemini.MaxTokens)
	if err != nil {
		return fmt.Errorf("failed to initialize insight generator: %w", err)
	}

	insightCache := cache.New(cfg.Cache.Capacity, cfg.Cache.TTLDuration())
	pipe := pipeline.New(extractor, generator, insightCache, st)

	srv := server.New(st, authSvc, pipe, serverCfg)

	// Serve until interrupted, then shut down gracefully.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
