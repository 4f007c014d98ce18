package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatsync/internal/cache"
	"chatsync/internal/chat"
	"chatsync/internal/chatapi"
	"chatsync/internal/config"
	"chatsync/internal/mylog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/do"
)

type cliFlags struct {
	configPath  string
	baseURL     string
	backend     string
	cachePath   string
	redisURL    string
	logLevel    string
	logFile     string
	noAltScreen bool
	plain       bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Config file path (default chatsync.yaml or $CHATSYNC_CONFIG)")
	flag.StringVar(&f.baseURL, "api", "", "Conversation service base URL")
	flag.StringVar(&f.backend, "cache", "", "Local cache backend (file|memory|redis)")
	flag.StringVar(&f.cachePath, "cache-path", "", "State file for the file cache backend")
	flag.StringVar(&f.redisURL, "redis-url", "", "Redis URL for the redis cache backend")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	flag.StringVar(&f.logFile, "log-file", "", "Log file path")
	flag.BoolVar(&f.noAltScreen, "no-alt-screen", false, "Render inline instead of using the alternate screen buffer")
	flag.BoolVar(&f.plain, "plain", false, "Render bot replies as plain text instead of markdown")
	flag.Parse()
	return f
}

// loadConfig layers command-line flags over the file and environment config.
func loadConfig(f cliFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	cfg.API.BaseURL = nullCoalesce(strings.TrimSpace(f.baseURL), cfg.API.BaseURL)
	cfg.Cache.Backend = nullCoalesce(strings.TrimSpace(f.backend), cfg.Cache.Backend)
	cfg.Cache.Path = nullCoalesce(strings.TrimSpace(f.cachePath), cfg.Cache.Path)
	cfg.Cache.RedisURL = nullCoalesce(strings.TrimSpace(f.redisURL), cfg.Cache.RedisURL)
	cfg.Log.Level = nullCoalesce(strings.TrimSpace(f.logLevel), cfg.Log.Level)
	cfg.Log.File = nullCoalesce(strings.TrimSpace(f.logFile), cfg.Log.File)
	if f.noAltScreen {
		cfg.UI.AltScreen = false
	}
	if f.plain {
		cfg.UI.Markdown = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideStore(di *do.Injector) (cache.Store, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)
	return cache.OpenStore(ctx, cfg.Cache)
}

func provideCache(di *do.Injector) (*cache.Cache, error) {
	cfg := do.MustInvoke[*config.Config](di)
	store := do.MustInvoke[cache.Store](di)
	return cache.New(store, cfg.Cache.KeyPrefix, slog.Default()), nil
}

func provideClient(di *do.Injector) (*chatapi.Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	return chatapi.New(cfg.API.BaseURL, timeout, slog.Default()), nil
}

func provideEngine(di *do.Injector) (*chat.Engine, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return chat.NewEngine(
		do.MustInvoke[*chatapi.Client](di),
		do.MustInvoke[*cache.Cache](di),
		chat.WithLogger(slog.Default().With("component", "engine")),
		chat.WithHistoryLimit(cfg.API.HistoryLimit),
		chat.WithSummaryLimit(cfg.API.SummaryLimit),
	), nil
}

func run() error {
	di := do.New()
	defer di.Shutdown()

	mylog.Preinit()

	appCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := loadConfig(parseFlags())
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	do.ProvideValue(di, cfg)

	tap := mylog.NewTap()
	logCloser, err := mylog.Init(cfg, tap)
	if err != nil {
		return fmt.Errorf("logging init failed: %w", err)
	}
	defer logCloser.Close()

	do.Provide(di, provideStore)
	do.Provide(di, provideCache)
	do.Provide(di, provideClient)
	do.Provide(di, provideEngine)

	engine, err := do.Invoke[*chat.Engine](di)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	slog.Info("chatsync started",
		"api", cfg.API.BaseURL,
		"cache", cfg.Cache.Backend,
	)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion(), tea.WithContext(appCtx)}
	if cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	ui := newModel(appCtx, engine, tap.Lines(), uiOptions{
		baseURL:  cfg.API.BaseURL,
		markdown: cfg.UI.Markdown,
	})
	p := tea.NewProgram(ui, opts...)
	_, err = p.Run()
	interrupted := appCtx.Err() != nil
	cancel()

	slog.Info("chatsync stopped")
	if err != nil && !interrupted {
		return err
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatsync-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}
