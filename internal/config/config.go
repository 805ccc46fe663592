package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "ANGELER"
	defaultHTTPAddress     = "0.0.0.0:5000"
	defaultDatabaseDriver  = "sqlite"
	defaultDatabasePath    = "angeler.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultPublicBaseURL   = "https://ocean-angler-grudge.replit.app"
	defaultWebhookTimeout  = 10 * time.Second
	defaultSessionTTL      = 7 * 24 * time.Hour
	defaultStreamHeartbeat = 25 * time.Second
	defaultUTCOffsetHours  = -6
	defaultStartHour       = 18
	defaultEndHour         = 20
	defaultReminderHour    = 19
	defaultPollInterval    = 30 * time.Second
	defaultResultsSize     = 10
	maxResultsSize         = 25
	driverSQLite           = "sqlite"
	driverPostgres         = "postgres"
	logFormatJSON          = "json"
	logFormatConsole       = "console"
)

// envAliases binds the variable names the game has always been deployed with.
var envAliases = []struct {
	key string
	env string
}{
	{key: "database.url", env: "DATABASE_URL"},
	{key: "public.base_url", env: "PUBLIC_BASE_URL"},
	{key: "discord.fish_webhook_url", env: "DISCORD_WEBHOOK_URL_FISH"},
	{key: "discord.tournament_webhook_url", env: "DISCORD_WEBHOOK_URL_TOURNAMENT"},
	{key: "discord.client_id", env: "DISCORD_CLIENT_ID"},
	{key: "discord.client_secret", env: "DISCORD_CLIENT_SECRET"},
	{key: "discord.redirect_url", env: "DISCORD_REDIRECT_URI"},
	{key: "session.signing_secret", env: "SESSION_SECRET"},
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	AllowedOrigins  []string
	StreamHeartbeat time.Duration
	Database        DatabaseConfig
	LogLevel        string
	LogFormat       string

	PublicBaseURL string
	Discord       DiscordConfig
	Session       SessionConfig
	Tournament    TournamentConfig
}

type DatabaseConfig struct {
	Driver string
	Path   string
	URL    string
}

type DiscordConfig struct {
	FishWebhookURL       string
	TournamentWebhookURL string
	WebhookTimeout       time.Duration
	ClientID             string
	ClientSecret         string
	RedirectURL          string
}

// OAuthEnabled reports whether every Discord login credential is present.
func (d DiscordConfig) OAuthEnabled() bool {
	return d.ClientID != "" && d.ClientSecret != "" && d.RedirectURL != ""
}

type SessionConfig struct {
	SigningSecret string
	TTL           time.Duration
	SecureCookie  bool
}

type TournamentConfig struct {
	UTCOffsetHours int
	StartHour      int
	EndHour        int
	ReminderHour   int
	PollInterval   time.Duration
	Prizes         []int64
	ResultsSize    int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("http.stream_heartbeat", defaultStreamHeartbeat)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("public.base_url", defaultPublicBaseURL)
	configViper.SetDefault("discord.webhook_timeout", defaultWebhookTimeout)
	configViper.SetDefault("session.ttl", defaultSessionTTL)
	configViper.SetDefault("session.secure_cookie", true)
	configViper.SetDefault("tournament.utc_offset_hours", defaultUTCOffsetHours)
	configViper.SetDefault("tournament.start_hour", defaultStartHour)
	configViper.SetDefault("tournament.end_hour", defaultEndHour)
	configViper.SetDefault("tournament.reminder_hour", defaultReminderHour)
	configViper.SetDefault("tournament.poll_interval", defaultPollInterval)
	configViper.SetDefault("tournament.prizes", []int64{5000, 2500, 1000})
	configViper.SetDefault("tournament.results_size", defaultResultsSize)

	for _, alias := range envAliases {
		// The prefixed name stays first so it wins over the alias.
		_ = configViper.BindEnv(alias.key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(alias.key, ".", "_")), alias.env)
	}
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	prizes, err := parsePrizes(configViper.Get("tournament.prizes"))
	if err != nil {
		return AppConfig{}, err
	}
	cfg := AppConfig{
		HTTPAddress:     strings.TrimSpace(configViper.GetString("http.address")),
		AllowedOrigins:  parseList(configViper.Get("http.allowed_origins")),
		StreamHeartbeat: configViper.GetDuration("http.stream_heartbeat"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
			Path:   strings.TrimSpace(configViper.GetString("database.path")),
			URL:    strings.TrimSpace(configViper.GetString("database.url")),
		},
		LogLevel:      configViper.GetString("log.level"),
		LogFormat:     strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(configViper.GetString("public.base_url")), "/"),
		Discord: DiscordConfig{
			FishWebhookURL:       strings.TrimSpace(configViper.GetString("discord.fish_webhook_url")),
			TournamentWebhookURL: strings.TrimSpace(configViper.GetString("discord.tournament_webhook_url")),
			WebhookTimeout:       configViper.GetDuration("discord.webhook_timeout"),
			ClientID:             strings.TrimSpace(configViper.GetString("discord.client_id")),
			ClientSecret:         strings.TrimSpace(configViper.GetString("discord.client_secret")),
			RedirectURL:          strings.TrimSpace(configViper.GetString("discord.redirect_url")),
		},
		Session: SessionConfig{
			SigningSecret: configViper.GetString("session.signing_secret"),
			TTL:           configViper.GetDuration("session.ttl"),
			SecureCookie:  configViper.GetBool("session.secure_cookie"),
		},
		Tournament: TournamentConfig{
			UTCOffsetHours: configViper.GetInt("tournament.utc_offset_hours"),
			StartHour:      configViper.GetInt("tournament.start_hour"),
			EndHour:        configViper.GetInt("tournament.end_hour"),
			ReminderHour:   configViper.GetInt("tournament.reminder_hour"),
			PollInterval:   configViper.GetDuration("tournament.poll_interval"),
			Prizes:         prizes,
			ResultsSize:    configViper.GetInt("tournament.results_size"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// parsePrizes accepts a list or a comma separated string, as env vars arrive.
func parsePrizes(raw any) ([]int64, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []int64:
		return append([]int64(nil), value...), nil
	case string:
		var prizes []int64
		for index, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			prize, err := cast.ToInt64E(trimmed)
			if err != nil {
				return nil, fmt.Errorf("tournament.prizes[%d]: %w", index, err)
			}
			prizes = append(prizes, prize)
		}
		return prizes, nil
	default:
		values, err := cast.ToIntSliceE(raw)
		if err != nil {
			return nil, fmt.Errorf("tournament.prizes: %w", err)
		}
		prizes := make([]int64, 0, len(values))
		for _, prize := range values {
			prizes = append(prizes, int64(prize))
		}
		return prizes, nil
	}
}

// parseList splits comma separated env values; lists from config files pass through.
func parseList(raw any) []string {
	var parts []string
	if value, ok := raw.(string); ok {
		parts = strings.Split(value, ",")
	} else {
		parts = cast.ToStringSlice(raw)
	}
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func (c AppConfig) validate() error {
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.StreamHeartbeat <= 0 {
		return fmt.Errorf("http.stream_heartbeat must be positive")
	}
	switch c.Database.Driver {
	case driverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case driverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required when database.driver is postgres")
		}
	default:
		return fmt.Errorf("database.driver must be %s or %s, got %q", driverSQLite, driverPostgres, c.Database.Driver)
	}
	if c.LogFormat != logFormatJSON && c.LogFormat != logFormatConsole {
		return fmt.Errorf("log.format must be %s or %s, got %q", logFormatJSON, logFormatConsole, c.LogFormat)
	}
	if c.Discord.WebhookTimeout <= 0 {
		return fmt.Errorf("discord.webhook_timeout must be positive")
	}
	if c.Discord.OAuthEnabled() && strings.TrimSpace(c.Session.SigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required when discord login is configured")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	t := c.Tournament
	if t.UTCOffsetHours < -12 || t.UTCOffsetHours > 14 {
		return fmt.Errorf("tournament.utc_offset_hours out of range: %d", t.UTCOffsetHours)
	}
	if t.StartHour < 0 || t.EndHour > 24 || t.StartHour >= t.EndHour {
		return fmt.Errorf("tournament.start_hour must precede tournament.end_hour")
	}
	if t.ReminderHour < t.StartHour || t.ReminderHour >= t.EndHour {
		return fmt.Errorf("tournament.reminder_hour must fall inside the window")
	}
	if t.PollInterval <= 0 {
		return fmt.Errorf("tournament.poll_interval must be positive")
	}
	if t.ResultsSize <= 0 || t.ResultsSize > maxResultsSize {
		return fmt.Errorf("tournament.results_size must be between 1 and %d", maxResultsSize)
	}
	return nil
}
