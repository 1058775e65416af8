package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relaybot/internal/audio"
	"relaybot/internal/bot"
	"relaybot/internal/bus"
	"relaybot/internal/channel"
	"relaybot/internal/config"
	"relaybot/internal/files"
	"relaybot/internal/ingest"
	"relaybot/internal/metrics"
	"relaybot/internal/provider"
	"relaybot/internal/reply"
	"relaybot/internal/store"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "relaybot",
		Short: "relaybot: chat-platform relay to AI services",
		Long:  "relaybot bridges chat platforms (Telegram, CLI) to completion, image, vision, speech, and knowledge-base services.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.relaybot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(relayCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger rebuilds the process logger from config. Falls back to stderr
// when the log file cannot be opened.
func setupLogger(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := io.Writer(os.Stderr)
	if cfg.General.LogFile != "" {
		path := config.ExpandPath(cfg.General.LogFile)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", path, "err", err)
		} else {
			out = f
		}
	}

	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and files directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			filesDir := config.ExpandPath(cfg.General.FilesDir)
			if err := os.MkdirAll(filesDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "files", filesDir)
			return nil
		},
	}
}

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Start the relay (all enabled channels + message handler)",
		Long:  "Starts all enabled channels and the message handler loop. Press Ctrl+C to stop.",
		RunE:  runRelay,
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat (CLI only)",
		RunE:  runChat,
	}
}

// core bundles everything a running relay needs.
type core struct {
	bus     *bus.InMemoryBus
	handler *bot.Handler
	records *store.SQLiteStore
}

func (c *core) close() {
	if c.records != nil {
		c.records.Close()
	}
	c.bus.Close()
}

// buildCore assembles the bus, providers, pipelines, and handler from config.
func buildCore(cfg *config.Config) (*core, error) {
	messageBus := bus.New(100, logger)

	fileStore, err := files.NewStore(files.StoreConfig{
		Dir:    config.ExpandPath(cfg.General.FilesDir),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	httpClient := provider.SharedHTTPClient(0)
	oai := cfg.OpenAI
	chatClient := provider.NewChatClient(provider.ChatConfig{
		APIKey: oai.APIKey, APIBase: oai.APIBase, Model: oai.ChatModel,
		Client: httpClient, Logger: logger,
	})
	imageClient := provider.NewImageClient(provider.ImageConfig{
		APIKey: oai.APIKey, APIBase: oai.APIBase, Model: oai.ImageModel,
		Client: httpClient, Logger: logger,
	})
	visionClient := provider.NewVisionClient(provider.VisionConfig{
		APIKey: oai.APIKey, APIBase: oai.APIBase, Model: oai.VisionModel,
		Client: httpClient, Logger: logger,
	})
	whisperClient := provider.NewWhisperClient(provider.WhisperConfig{
		APIKey: oai.APIKey, APIBase: oai.APIBase, Model: oai.WhisperModel,
		Client: httpClient, Logger: logger,
	})
	ttsClient := provider.NewTTSClient(provider.TTSConfig{
		APIKey: oai.APIKey, APIBase: oai.APIBase, Model: oai.TTSModel,
		Voice: oai.TTSVoice, Client: httpClient, Logger: logger,
	})
	docQAClient := provider.NewDocQAClient(provider.DocQAConfig{
		Site: cfg.Knowledge.Site, AppKey: cfg.Knowledge.AppKey,
		Insecure: cfg.Knowledge.InsecureTLS, Logger: logger,
	})

	replies := reply.NewPipeline(reply.PipelineConfig{
		Chat:   chatClient,
		Image:  imageClient,
		Vision: visionClient,
		Speech: ttsClient,
		Doc:    docQAClient,
		Logger: logger,
	})

	voice := audio.NewPipeline(audio.PipelineConfig{
		Files:   fileStore,
		STT:     whisperClient,
		Replies: replies,
		Logger:  logger,
	})

	selectors := ingest.DefaultSelectors()
	if cfg.Knowledge.SelectorsFile != "" {
		selectors, err = ingest.LoadSelectors(config.ExpandPath(cfg.Knowledge.SelectorsFile))
		if err != nil {
			return nil, err
		}
	}
	sessions := ingest.NewClient(ingest.ClientConfig{
		Site:        cfg.Knowledge.Site,
		Selectors:   selectors,
		Headless:    cfg.Knowledge.Headless,
		StepTimeout: time.Duration(cfg.Knowledge.StepTimeoutSeconds) * time.Second,
		Logger:      logger,
	})
	ingestor := ingest.NewWorkflow(ingest.WorkflowConfig{
		Sessions: sessions,
		Credentials: ingest.Credentials{
			Username:  cfg.Knowledge.Username,
			Password:  cfg.Knowledge.Password,
			DatasetID: cfg.Knowledge.DatasetID,
		},
		Policy:        ingest.Policy(cfg.Knowledge.IngestPolicy),
		PollTimeout:   time.Duration(cfg.Knowledge.PollTimeoutSeconds) * time.Second,
		ScreenshotDir: config.ExpandPath(cfg.Knowledge.ScreenshotDir),
		Logger:        logger,
	})

	var records *store.SQLiteStore
	if cfg.Store.Enabled {
		records, err = store.NewSQLiteStore(config.ExpandPath(cfg.Store.DBPath), logger)
		if err != nil {
			return nil, fmt.Errorf("turn store: %w", err)
		}
	}

	var recorder bot.TurnRecorder
	if records != nil {
		recorder = records
	}

	handler := bot.NewHandler(bot.HandlerConfig{
		Bus:           messageBus,
		Admission:     bot.NewAdmission(cfg.Bot.Name, cfg.Bot.GroupWhitelist, cfg.Bot.ContactWhitelist),
		Replies:       replies,
		Voice:         voice,
		Ingestor:      ingestor,
		Files:         fileStore,
		Records:       recorder,
		UsageTriggers: cfg.Bot.UsageTriggers,
		Logger:        logger,
		Concurrency:   cfg.General.MaxConcurrentMessages,
	})

	return &core{bus: messageBus, handler: handler, records: records}, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildCore(cfg)
	if err != nil {
		return err
	}
	defer c.close()

	go c.handler.Run(ctx)

	cliCh := channel.NewCLI(channel.CLIConfig{
		Logger:   logger,
		MediaDir: config.ExpandPath(cfg.General.FilesDir),
	})
	return cliCh.Start(ctx, c.bus)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildCore(cfg)
	if err != nil {
		return err
	}

	go c.handler.Run(ctx)

	if addr := cfg.General.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", metrics.Collector.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, c.bus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	logger.Info("relay started", "version", version)

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down relay...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		c.close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			chatClient := provider.NewChatClient(provider.ChatConfig{
				APIKey: cfg.OpenAI.APIKey, APIBase: cfg.OpenAI.APIBase,
				Model: cfg.OpenAI.ChatModel, Logger: logger,
			})
			if err := chatClient.Healthy(ctx); err != nil {
				logger.Info("completion service", "healthy", false, "err", err)
			} else {
				logger.Info("completion service", "healthy", true, "model", cfg.OpenAI.ChatModel)
			}

			if cfg.Store.Enabled {
				records, err := store.NewSQLiteStore(config.ExpandPath(cfg.Store.DBPath), logger)
				if err != nil {
					return err
				}
				defer records.Close()
				turns, ingestions, err := records.Stats(ctx)
				if err != nil {
					return err
				}
				logger.Info("store", "turns", turns, "ingestions", ingestions)
			}
			return nil
		},
	}
}
