package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grudge-angeler/backend/internal/auth"
	"github.com/grudge-angeler/backend/internal/config"
	"github.com/grudge-angeler/backend/internal/database"
	"github.com/grudge-angeler/backend/internal/events"
	"github.com/grudge-angeler/backend/internal/logging"
	"github.com/grudge-angeler/backend/internal/metrics"
	"github.com/grudge-angeler/backend/internal/notify"
	"github.com/grudge-angeler/backend/internal/players"
	"github.com/grudge-angeler/backend/internal/scores"
	"github.com/grudge-angeler/backend/internal/server"
	"github.com/grudge-angeler/backend/internal/tournament"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "angeler-api",
		Short: "Grudge Angeler leaderboard and tournament backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations()
		},
	})

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-url", "", "Postgres connection URL (overrides env)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().Duration("poll-interval", defaults.GetDuration("tournament.poll_interval"), "Tournament scheduler poll interval")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.url", "database-url")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "tournament.poll_interval", "poll-interval")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func loadRuntime() (config.AppConfig, *zap.Logger, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return appConfig, logger, nil
}

func databaseConfig(appConfig config.AppConfig) database.Config {
	return database.Config{
		Driver: appConfig.Database.Driver,
		Path:   appConfig.Database.Path,
		URL:    appConfig.Database.URL,
	}
}

func runMigrations() error {
	appConfig, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(databaseConfig(appConfig), logger)
	if err != nil {
		logger.Error("migration failed", zap.Error(err))
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runServer(ctx context.Context) error {
	appConfig, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(databaseConfig(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	scoreStore, err := scores.NewService(scores.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: scores.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	window := tournament.WindowConfig{
		UTCOffsetHours: appConfig.Tournament.UTCOffsetHours,
		StartHour:      appConfig.Tournament.StartHour,
		EndHour:        appConfig.Tournament.EndHour,
		ReminderHour:   appConfig.Tournament.ReminderHour,
	}
	calendar, err := tournament.NewCalendar(tournament.CalendarConfig{Window: window, Clock: time.Now})
	if err != nil {
		return err
	}
	entries, err := tournament.NewEntries(calendar, scoreStore)
	if err != nil {
		return err
	}
	if err := tournament.ValidatePrizes(appConfig.Tournament.Prizes); err != nil {
		return err
	}

	recorder, err := metrics.New()
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		FishWebhookURL:       appConfig.Discord.FishWebhookURL,
		TournamentWebhookURL: appConfig.Discord.TournamentWebhookURL,
		PublicBaseURL:        appConfig.PublicBaseURL,
		Timeout:              appConfig.Discord.WebhookTimeout,
		Results:              scoreStore,
		ResultsSize:          appConfig.Tournament.ResultsSize,
		Recorder:             recorder,
		Logger:               logger,
	})
	defer dispatcher.Wait()

	hub := events.NewHub()
	scheduler, err := tournament.NewScheduler(tournament.SchedulerConfig{
		Calendar:        calendar,
		Announcer:       dispatcher,
		Rewards:         scoreStore,
		Prizes:          appConfig.Tournament.Prizes,
		Publisher:       hub,
		Recorder:        recorder,
		PollInterval:    appConfig.Tournament.PollInterval,
		DispatchTimeout: appConfig.Discord.WebhookTimeout,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Scores:            scoreStore,
		Calendar:          calendar,
		Entries:           entries,
		Notifier:          dispatcher,
		Events:            hub,
		Metrics:           recorder,
		AllowedOrigins:    appConfig.AllowedOrigins,
		HeartbeatInterval: appConfig.StreamHeartbeat,
		Logger:            logger,
	}
	if err := wireDiscordLogin(&deps, appConfig, db); err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(signalCtx)
	}()
	logger.Info("tournament scheduler started",
		zap.Int("start_hour", window.StartHour),
		zap.Int("end_hour", window.EndHour),
		zap.Int("utc_offset_hours", window.UTCOffsetHours),
		zap.Duration("poll_interval", appConfig.Tournament.PollInterval),
	)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-signalCtx.Done():
	case serveErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	<-schedulerDone
	logger.Info("server stopped")
	return serveErr
}

// wireDiscordLogin enables the login routes when Discord OAuth credentials are configured.
func wireDiscordLogin(deps *server.Dependencies, appConfig config.AppConfig, db *gorm.DB) error {
	if !appConfig.Discord.OAuthEnabled() {
		deps.Logger.Info("discord login disabled")
		return nil
	}
	oauth, err := auth.NewDiscordOAuth(auth.DiscordOAuthConfig{
		ClientID:     appConfig.Discord.ClientID,
		ClientSecret: appConfig.Discord.ClientSecret,
		RedirectURL:  appConfig.Discord.RedirectURL,
		Timeout:      appConfig.Discord.WebhookTimeout,
	})
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionManager(auth.SessionConfig{
		SigningSecret: []byte(appConfig.Session.SigningSecret),
		TTL:           appConfig.Session.TTL,
		Secure:        appConfig.Session.SecureCookie,
	})
	if err != nil {
		return err
	}
	directory, err := players.NewService(players.ServiceConfig{Database: db})
	if err != nil {
		return err
	}
	deps.OAuth = oauth
	deps.Sessions = sessions
	deps.OAuthStates = auth.NewStateStore(0)
	deps.Players = directory
	return nil
}
