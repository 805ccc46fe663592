package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultDiscordAPIBase = "https://discord.com/api"
	discordCDNBase        = "https://cdn.discordapp.com"
	defaultOAuthTimeout   = 10 * time.Second
	maxProfileBody        = 1 << 16
)

var (
	// ErrOAuthNotConfigured indicates missing Discord client credentials.
	ErrOAuthNotConfigured = errors.New("auth: discord oauth is not configured")
	// ErrMissingAuthorizationCode indicates a callback without a code parameter.
	ErrMissingAuthorizationCode = errors.New("auth: authorization code required")
	errIncompleteProfile        = errors.New("auth: discord profile missing id or username")
)

// DiscordOAuthConfig describes the Discord application used for login.
type DiscordOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIBaseURL   string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// DiscordUser is the subset of the /users/@me payload the service keeps.
type DiscordUser struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	GlobalName *string `json:"global_name"`
	Avatar     *string `json:"avatar"`
}

// DisplayName prefers the global display name over the username.
func (u DiscordUser) DisplayName() string {
	if u.GlobalName != nil && strings.TrimSpace(*u.GlobalName) != "" {
		return strings.TrimSpace(*u.GlobalName)
	}
	return u.Username
}

// AvatarURL returns the CDN url of the user's avatar, or empty when unset.
func (u DiscordUser) AvatarURL() string {
	if u.Avatar == nil || *u.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("%s/avatars/%s/%s.png", discordCDNBase, u.ID, *u.Avatar)
}

// DiscordOAuth runs the authorization code flow against Discord.
type DiscordOAuth struct {
	config     *oauth2.Config
	apiBase    string
	httpClient *http.Client
}

func NewDiscordOAuth(cfg DiscordOAuthConfig) (*DiscordOAuth, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	redirectURL := strings.TrimSpace(cfg.RedirectURL)
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, ErrOAuthNotConfigured
	}
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if apiBase == "" {
		apiBase = defaultDiscordAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOAuthTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &DiscordOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   apiBase + "/oauth2/authorize",
				TokenURL:  apiBase + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBase:    apiBase,
		httpClient: httpClient,
	}, nil
}

// AuthorizeURL returns the Discord consent url carrying state.
func (o *DiscordOAuth) AuthorizeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Authenticate exchanges the authorization code and loads the Discord profile.
func (o *DiscordOAuth) Authenticate(ctx context.Context, code string) (DiscordUser, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return DiscordUser{}, ErrMissingAuthorizationCode
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return DiscordUser{}, fmt.Errorf("auth: exchange code: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiBase+"/users/@me", nil)
	if err != nil {
		return DiscordUser{}, fmt.Errorf("auth: build profile request: %w", err)
	}
	response, err := o.config.Client(ctx, token).Do(request)
	if err != nil {
		return DiscordUser{}, fmt.Errorf("auth: fetch profile: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return DiscordUser{}, fmt.Errorf("auth: profile request returned %d", response.StatusCode)
	}
	var user DiscordUser
	if err := json.NewDecoder(io.LimitReader(response.Body, maxProfileBody)).Decode(&user); err != nil {
		return DiscordUser{}, fmt.Errorf("auth: decode profile: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Username) == "" {
		return DiscordUser{}, errIncompleteProfile
	}
	return user, nil
}
