package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress || cfg.Database.Driver != driverSQLite || cfg.Database.Path != defaultDatabasePath {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.PublicBaseURL != defaultPublicBaseURL {
		t.Fatalf("unexpected base url %s", cfg.PublicBaseURL)
	}
	window := cfg.Tournament
	if window.UTCOffsetHours != -6 || window.StartHour != 18 || window.EndHour != 20 || window.ReminderHour != 19 {
		t.Fatalf("unexpected window %#v", window)
	}
	if window.PollInterval != 30*time.Second {
		t.Fatalf("unexpected poll interval %s", window.PollInterval)
	}
	if len(window.Prizes) != 3 || window.Prizes[0] != 5000 || window.Prizes[2] != 1000 {
		t.Fatalf("unexpected prizes %v", window.Prizes)
	}
	if cfg.Discord.FishWebhookURL != "" || cfg.Discord.OAuthEnabled() {
		t.Fatalf("expected discord integrations to be disabled by default")
	}
	if len(cfg.AllowedOrigins) != 0 || cfg.StreamHeartbeat != defaultStreamHeartbeat || !cfg.Session.SecureCookie {
		t.Fatalf("unexpected http defaults %#v", cfg)
	}
}

func TestLoadReadsLegacyEnvironmentNames(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL_FISH", "https://discord.test/fish")
	t.Setenv("DISCORD_WEBHOOK_URL_TOURNAMENT", "https://discord.test/tournament")
	t.Setenv("PUBLIC_BASE_URL", "https://angler.test/")
	t.Setenv("DISCORD_CLIENT_ID", "client")
	t.Setenv("DISCORD_CLIENT_SECRET", "secret")
	t.Setenv("DISCORD_REDIRECT_URI", "https://angler.test/api/auth/discord/callback")
	t.Setenv("SESSION_SECRET", "signing")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Discord.FishWebhookURL != "https://discord.test/fish" || cfg.Discord.TournamentWebhookURL != "https://discord.test/tournament" {
		t.Fatalf("unexpected webhooks %#v", cfg.Discord)
	}
	if cfg.PublicBaseURL != "https://angler.test" {
		t.Fatalf("expected trailing slash to be trimmed, got %s", cfg.PublicBaseURL)
	}
	if !cfg.Discord.OAuthEnabled() || cfg.Session.SigningSecret != "signing" {
		t.Fatalf("expected discord login to be configured")
	}
}

func TestLoadPrefersPrefixedEnvironment(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL_FISH", "https://discord.test/legacy")
	t.Setenv("ANGELER_DISCORD_FISH_WEBHOOK_URL", "https://discord.test/prefixed")
	t.Setenv("ANGELER_TOURNAMENT_PRIZES", "300, 200,100")
	t.Setenv("ANGELER_TOURNAMENT_POLL_INTERVAL", "5s")
	t.Setenv("ANGELER_HTTP_ALLOWED_ORIGINS", "https://ocean-angler-grudge.replit.app, http://localhost:5173")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Discord.FishWebhookURL != "https://discord.test/prefixed" {
		t.Fatalf("expected prefixed variable to win, got %s", cfg.Discord.FishWebhookURL)
	}
	if len(cfg.Tournament.Prizes) != 3 || cfg.Tournament.Prizes[1] != 200 {
		t.Fatalf("unexpected prizes %v", cfg.Tournament.Prizes)
	}
	if cfg.Tournament.PollInterval != 5*time.Second {
		t.Fatalf("unexpected poll interval %s", cfg.Tournament.PollInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:5173" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{name: "postgres-without-url", env: map[string]string{"ANGELER_DATABASE_DRIVER": "postgres"}, message: "database.url"},
		{name: "unknown-driver", env: map[string]string{"ANGELER_DATABASE_DRIVER": "mysql"}, message: "database.driver"},
		{name: "inverted-window", env: map[string]string{"ANGELER_TOURNAMENT_START_HOUR": "21"}, message: "start_hour"},
		{name: "reminder-outside", env: map[string]string{"ANGELER_TOURNAMENT_REMINDER_HOUR": "20"}, message: "reminder_hour"},
		{name: "oauth-without-secret", env: map[string]string{"DISCORD_CLIENT_ID": "id", "DISCORD_CLIENT_SECRET": "s", "DISCORD_REDIRECT_URI": "https://x"}, message: "signing_secret"},
		{name: "bad-log-format", env: map[string]string{"ANGELER_LOG_FORMAT": "xml"}, message: "log.format"},
		{name: "bad-prizes", env: map[string]string{"ANGELER_TOURNAMENT_PRIZES": "gold"}, message: "tournament.prizes"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			for key, value := range testCase.env {
				t.Setenv(key, value)
			}
			_, err := Load(NewViper())
			if err == nil || !strings.Contains(err.Error(), testCase.message) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.message, err)
			}
		})
	}
}
