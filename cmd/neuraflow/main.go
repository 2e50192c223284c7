// Package main provides the CLI entry point for the NEURAFLOW WhatsApp bot.
//
// The bot connects a WhatsApp account to LLM backends (Groq llama, OpenRouter
// Qwen and DeepSeek) with web search, Notion note capture, and OCR.
//
// # Basic Usage
//
// Start the bot:
//
//	neuraflow serve --config neuraflow.yaml
//
// # Environment Variables
//
// The config file is passed through os.ExpandEnv, so secrets are usually
// referenced as ${GROQ_API_KEY}, ${OPENROUTER_API_KEY}, ${SERPER_API_KEY},
// ${NOTION_TOKEN}, and ${MONGODB_URI}.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mtaspro/neuraflow/internal/channels/whatsapp"
	"github.com/mtaspro/neuraflow/internal/config"
	"github.com/mtaspro/neuraflow/internal/dispatch"
	"github.com/mtaspro/neuraflow/internal/llm"
	"github.com/mtaspro/neuraflow/internal/memory"
	"github.com/mtaspro/neuraflow/internal/notion"
	"github.com/mtaspro/neuraflow/internal/observability"
	"github.com/mtaspro/neuraflow/internal/ocr"
	"github.com/mtaspro/neuraflow/internal/ratelimit"
	"github.com/mtaspro/neuraflow/internal/router"
	"github.com/mtaspro/neuraflow/internal/search"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "neuraflow",
		Short:        "NEURAFLOW - WhatsApp community AI assistant",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("neuraflow %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to WhatsApp and start answering messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "neuraflow.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func runServe(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := buildLogger(cfg.Logging, debug)
	slog.SetDefault(logger)

	// The process is expected to run under a supervisor that restarts it;
	// outside active hours we simply decline to start.
	if !cfg.ActiveHours.Within(time.Now()) {
		logger.Info("outside active hours, not starting",
			"start_hour", cfg.ActiveHours.StartHour,
			"end_hour", cfg.ActiveHours.EndHour)
		return nil
	}

	logger.Info("starting NEURAFLOW",
		"version", version,
		"config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store memory.Store
	if cfg.MongoDB.URI != "" {
		mongoStore, err := memory.NewMongoStore(ctx, cfg.MongoDB, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongoStore.Close(context.Background())
		store = mongoStore
	} else {
		logger.Warn("mongodb.uri not set, conversation memory will not survive restarts")
		store = memory.NewMemoryStore()
	}

	chat, err := llm.NewGroqChat(cfg.LLM.GroqAPIKey, "")
	if err != nil {
		return fmt.Errorf("failed to create chat client: %w", err)
	}
	reasoner, err := llm.NewDeepSeekReasoner(cfg.LLM.OpenRouterAPIKey, "")
	if err != nil {
		return fmt.Errorf("failed to create reasoning client: %w", err)
	}
	secondary, err := llm.NewQwenChat(cfg.LLM.OpenRouterAPIKey, "")
	if err != nil {
		return fmt.Errorf("failed to create qwen client: %w", err)
	}
	summarizer, err := llm.NewQwenSummarizer(cfg.LLM.OpenRouterAPIKey, "")
	if err != nil {
		return fmt.Errorf("failed to create summarizer client: %w", err)
	}

	opts := dispatch.Options{
		Store: store,
		Generators: dispatch.Generators{
			Chat:       chat,
			Reasoner:   reasoner,
			Secondary:  secondary,
			Summarizer: summarizer,
		},
		Limiters: dispatch.Limiters{
			Llama:    ratelimit.NewWindow(cfg.RateLimits.Llama),
			DeepSeek: ratelimit.NewWindow(cfg.RateLimits.DeepSeek),
			Qwen:     ratelimit.NewWindow(cfg.RateLimits.Qwen),
			Summary:  ratelimit.NewWindow(cfg.RateLimits.Summary),
		},
		OCR:     ocr.NewExtractor(),
		Policy:  cfg.History,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if cfg.Search.APIKey != "" {
		searcher, err := search.NewClient(cfg.Search.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create search client: %w", err)
		}
		opts.Search = searcher
	} else {
		logger.Warn("search.api_key not set, /search is disabled")
	}

	var subjects []string
	if cfg.Notion.Token != "" {
		kb, err := notion.NewClient(cfg.Notion)
		if err != nil {
			return fmt.Errorf("failed to create notion client: %w", err)
		}
		opts.Knowledge = kb
		subjects = kb.Subjects()
	} else {
		logger.Warn("notion.token not set, note commands are disabled")
	}

	// The adapter implements the group directory but also needs the
	// dispatcher; bind the lookup lazily to break the cycle.
	var adapter *whatsapp.Adapter
	opts.Directory = dispatch.DirectoryFunc(func(ctx context.Context, conversationID string) ([]dispatch.Member, error) {
		return adapter.Members(ctx, conversationID)
	})

	dispatcher := dispatch.New(opts)
	rt := router.New(cfg.Bot.Mention, subjects)

	adapter, err = whatsapp.New(&cfg.WhatsApp, rt, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("failed to create whatsapp adapter: %w", err)
	}
	if err := adapter.Start(ctx); err != nil {
		return fmt.Errorf("failed to start whatsapp adapter: %w", err)
	}

	httpServer := buildHTTPServer(cfg.Server, adapter)
	httpErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-httpErr:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adapter.Stop(shutdownCtx); err != nil {
		logger.Warn("failed to stop whatsapp adapter", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to stop http server", "error", err)
	}
	return nil
}

// buildHTTPServer serves the liveness endpoint and Prometheus metrics.
func buildHTTPServer(cfg config.ServerConfig, adapter *whatsapp.Adapter) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"message":   "Server is running",
			"status":    "OK",
			"connected": adapter.Connected(),
			"version":   version,
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func buildLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
