// Package app wires configuration, storage, notification and the HTTP
// server into one runnable unit.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pulsegrid/pulsegrid/internal/config"
	"github.com/pulsegrid/pulsegrid/internal/notify"
	"github.com/pulsegrid/pulsegrid/internal/server"
	"github.com/pulsegrid/pulsegrid/internal/sqlite"
	"github.com/pulsegrid/pulsegrid/internal/stream"
	"github.com/pulsegrid/pulsegrid/pkg/logger"
	"github.com/pulsegrid/pulsegrid/pkg/models"
)

// App holds the application's dependencies.
type App struct {
	Config     *config.Config
	SQLite     *sqlite.DB
	Hub        *stream.Hub
	Dispatcher *notify.Dispatcher
	Logger     *slog.Logger

	server *server.Server

	Version string
}

// Options contains configuration needed when creating a new App instance.
type Options struct {
	ConfigPath string
	Version    string
}

// New loads configuration and creates an App ready to be initialized.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger.New(cfg.Logging.Level == "debug"),
		Version: opts.Version,
	}, nil
}

// Initialize opens the database, seeds settings on first boot and builds
// the remaining components.
func (a *App) Initialize(ctx context.Context) error {
	var err error
	a.SQLite, err = sqlite.New(sqlite.Options{
		Config: a.Config.SQLite,
		Logger: a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite: %w", err)
	}

	if err := a.seedSettings(ctx); err != nil {
		// First-boot convenience only; config defaults still apply.
		a.Logger.Warn("failed to seed settings from config", "error", err)
	}

	a.Hub = stream.NewHub(a.Logger)
	a.Dispatcher = notify.NewDispatcher(a.SQLite, a.Config.Alerts, a.Logger)

	a.server = server.New(server.Options{
		Config:     a.Config,
		SQLite:     a.SQLite,
		Hub:        a.Hub,
		Dispatcher: a.Dispatcher,
		Logger:     a.Logger,
	})
	return nil
}

// Start begins serving HTTP and blocks until the listener closes.
func (a *App) Start() error {
	if a.server == nil {
		return fmt.Errorf("server not initialized")
	}
	a.Logger.Info("starting pulsegrid", "version", a.Version, "addr", a.Config.Server.Addr)
	return a.server.Start()
}

// Shutdown stops the server and closes the database.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if a.server != nil {
		done := make(chan error, 1)
		go func() {
			done <- a.server.Shutdown()
		}()
		select {
		case err := <-done:
			if err != nil {
				a.Logger.Error("error shutting down server", "error", err)
			}
		case <-ctx.Done():
			a.Logger.Warn("timeout shutting down server, continuing")
		}
	}

	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			a.Logger.Error("error closing database", "error", err)
			return err
		}
	}

	a.Logger.Info("shutdown complete")
	return nil
}

// seedSettings populates the settings table from the static config on first
// boot. After seeding, the database is the source of truth and the config
// file only supplies fallbacks.
func (a *App) seedSettings(ctx context.Context) error {
	existing, err := a.SQLite.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing settings: %w", err)
	}
	if len(existing) > 0 {
		a.Logger.Debug("settings already seeded, skipping")
		return nil
	}
	a.Logger.Info("seeding settings from config (first boot)")

	alerts := a.Config.Alerts
	seeds := []struct {
		key, value, valueType, description string
		sensitive                          bool
	}{
		{models.SettingAlertsEnabled, strconv.FormatBool(alerts.Enabled), "boolean", "Whether alert emails are sent", false},
		{models.SettingAlertsRecipients, strings.Join(alerts.Recipients, ","), "string", "Comma separated alert recipients", false},
		{models.SettingSMTPHost, alerts.SMTPHost, "string", "SMTP server host", false},
		{models.SettingSMTPPort, strconv.Itoa(alerts.SMTPPort), "number", "SMTP server port", false},
		{models.SettingSMTPUsername, alerts.SMTPUsername, "string", "SMTP username", false},
		{models.SettingSMTPPassword, alerts.SMTPPassword, "string", "SMTP password", true},
		{models.SettingSMTPFrom, alerts.SMTPFrom, "string", "Sender address for alert emails", false},
		{models.SettingSMTPReplyTo, alerts.SMTPReplyTo, "string", "Reply-To address for alert emails", false},
		{models.SettingSMTPSecurity, alerts.SMTPSecurity, "string", "SMTP transport security: none, starttls or tls", false},
		{models.SettingSMTPTimeout, alerts.RequestTimeout.String(), "string", "SMTP request timeout", false},
	}
	for _, s := range seeds {
		if err := a.SQLite.UpsertSetting(ctx, s.key, s.value, s.valueType, "alerts", s.description, s.sensitive); err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", s.key, err)
		}
	}
	return nil
}
