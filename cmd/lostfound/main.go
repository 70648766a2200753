package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nhle/lostfound/internal/api"
	"github.com/nhle/lostfound/internal/app"
	"github.com/nhle/lostfound/internal/credential"
	"github.com/nhle/lostfound/internal/identity"
	"github.com/nhle/lostfound/internal/items"
	"github.com/nhle/lostfound/internal/model"
	"github.com/nhle/lostfound/internal/notify"
	"github.com/nhle/lostfound/internal/store"
	appsync "github.com/nhle/lostfound/internal/sync"
	"github.com/nhle/lostfound/internal/theme"
)

// disposeTimeout bounds the final persistence on exit.
const disposeTimeout = 5 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	configPath := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	theme.Apply(cfg.Display.Theme)

	logFile, err := openLogFile(cfg.Log.File)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open log file")
	}
	defer logFile.Close()

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(logFile).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}
	db, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local state")
	}
	defer db.Close()

	ring, err := credential.Open(model.ConfigDir())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open keyring")
	}
	tokens := credential.NewStore(ring)
	if err := seedTokens(tokens); err != nil {
		log.Fatal().Err(err).Msg("failed to store credentials")
	}

	client := api.NewClient(api.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout(),
		AuthScheme:  cfg.API.AuthScheme,
		RefreshPath: cfg.API.RefreshPath,
	}, tokens, logger)

	expired := make(chan struct{}, 1)
	client.OnSessionExpired(func() {
		select {
		case expired <- struct{}{}:
		default:
		}
	})

	itemService := items.NewService(client, logger)
	ident := identity.NewProvider(tokens, cfg.User.Email)

	notifications := notify.NewService(db, cfg.Notifications.CriticalScores, logger)
	notifications.Init(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
		defer cancel()
		notifications.Dispose(ctx)
	}()

	poller := appsync.New(itemService, ident, notifications, cfg.Notifications.PollInterval(), logger)

	root := app.New(app.Deps{
		Notifications:  notifications,
		Items:          itemService,
		Identity:       ident,
		Poller:         poller,
		Config:         cfg,
		ConfigPath:     configPath,
		Logger:         logger,
		SessionExpired: expired,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("ui exited with error")
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

// seedTokens stores credentials handed over through the environment, such
// as LOSTFOUND_ACCESS_TOKEN exported by a login script.
func seedTokens(tokens *credential.Store) error {
	access := os.Getenv("LOSTFOUND_ACCESS_TOKEN")
	if access == "" {
		return nil
	}
	return tokens.SetTokens(access, os.Getenv("LOSTFOUND_REFRESH_TOKEN"))
}
