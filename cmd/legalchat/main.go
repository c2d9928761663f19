package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"legalchat/internal/backend"
	"legalchat/internal/config"
	"legalchat/internal/historystore"
	"legalchat/internal/historystore/file"
	"legalchat/internal/historystore/memory"
	"legalchat/internal/historystore/redis"
	"legalchat/internal/logger"
	"legalchat/internal/service"
	"legalchat/internal/session"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "legalchat",
	Short:         "Terminal client for the Vakil Buddy legal assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return chatCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (defaults to ./config.yaml or ~/.config/legalchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also log to stderr (one-shot commands only)")
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the assembled client shared by every subcommand.
type app struct {
	cfg        *config.AppConfig
	log        *zap.Logger
	storage    historystore.Storage
	store      *session.Store
	dispatcher *service.Dispatcher
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgPath)
}

// newApp wires config, logging, history and the backend client. console tees logs to stderr.
func newApp(ctx context.Context, console bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level, Console: console})

	storage, err := openHistory(ctx, cfg)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	store := session.NewStore(storage, cfg.History.Key, log.Named("session"))
	store.Load(ctx)

	client, err := backend.NewClient(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Backend.MaxRetries,
		Logger:     log.Named("backend"),
	})
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("backend client: %w", err)
	}

	dispatcher := service.NewDispatcher(client, store, service.NewPending(), service.NewFileSaver(cfg.Documents.OutputDir), service.Options{
		Timeout: time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		Logger:  log.Named("dispatch"),
	})
	log.Info("client ready",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("history", cfg.History.Type),
		zap.Int("messages", store.Len()),
	)
	return &app{cfg: cfg, log: log, storage: storage, store: store, dispatcher: dispatcher}, nil
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.log.Warn("close history", zap.Error(err))
	}
	_ = a.log.Sync()
}

func openHistory(ctx context.Context, cfg *config.AppConfig) (historystore.Storage, error) {
	switch cfg.History.Type {
	case "file", "":
		if cfg.History.File == nil {
			return nil, fmt.Errorf("file history config missing")
		}
		return file.NewStorage(cfg.History.File.Dir), nil
	case "memory":
		return memory.NewStorage(), nil
	case "redis":
		if cfg.History.Redis == nil {
			return nil, fmt.Errorf("redis history config missing")
		}
		st, err := redis.NewStorage(ctx, redis.Config{
			Addr:     cfg.History.Redis.Addr,
			Username: cfg.History.Redis.Username,
			Password: cfg.History.Redis.Password,
			DB:       cfg.History.Redis.DB,
			Timeout:  time.Duration(cfg.History.Redis.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("redis history: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.History.Type)
	}
}
