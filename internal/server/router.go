package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/grudge-angeler/backend/internal/auth"
	"github.com/grudge-angeler/backend/internal/events"
	"github.com/grudge-angeler/backend/internal/metrics"
	"github.com/grudge-angeler/backend/internal/notify"
	"github.com/grudge-angeler/backend/internal/players"
	"github.com/grudge-angeler/backend/internal/scores"
	"github.com/grudge-angeler/backend/internal/tournament"
	"go.uber.org/zap"
)

const defaultHeartbeatInterval = 25 * time.Second

var (
	errMissingScoreStore = errors.New("score store dependency required")
	errMissingCalendar   = errors.New("tournament calendar dependency required")
	errMissingEntries    = errors.New("tournament entries dependency required")
	errMissingNotifier   = errors.New("catch notifier dependency required")
)

// ScoreStore is the read and leaderboard write surface of the score store.
type ScoreStore interface {
	SubmitLeaderboardEntry(ctx context.Context, submission scores.LeaderboardSubmission) (scores.LeaderboardResult, error)
	ListLeaderboard(ctx context.Context, category scores.Category, limit int) ([]scores.LeaderboardEntry, error)
	ListTournamentResults(ctx context.Context, date string, limit int) ([]scores.TournamentEntry, error)
}

// TournamentSubmitter records tournament entries while the window is open.
type TournamentSubmitter interface {
	Submit(ctx context.Context, submission scores.TournamentSubmission) (tournament.SubmissionResult, error)
}

// CatchNotifier announces notable catches without blocking the caller.
type CatchNotifier interface {
	NotifyCatch(ctx context.Context, event notify.CatchEvent)
}

// EventSource feeds the tournament event stream.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan events.Message, func())
}

// DiscordAuthenticator runs the Discord login flow.
type DiscordAuthenticator interface {
	AuthorizeURL(state string) string
	Authenticate(ctx context.Context, code string) (auth.DiscordUser, error)
}

// PlayerDirectory persists and resolves logged in players.
type PlayerDirectory interface {
	UpsertDiscordUser(ctx context.Context, user auth.DiscordUser) (players.Identity, error)
	Lookup(ctx context.Context, playerID string) (players.Identity, error)
}

// Dependencies wires the HTTP surface. Login routes are registered only when
// Sessions, OAuth, OAuthStates and Players are all present.
type Dependencies struct {
	Scores            ScoreStore
	Calendar          *tournament.Calendar
	Entries           TournamentSubmitter
	Notifier          CatchNotifier
	Events            EventSource
	Sessions          *auth.SessionManager
	OAuth             DiscordAuthenticator
	OAuthStates       *auth.StateStore
	Players           PlayerDirectory
	Metrics           *metrics.Metrics
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Scores == nil {
		return nil, errMissingScoreStore
	}
	if deps.Calendar == nil {
		return nil, errMissingCalendar
	}
	if deps.Entries == nil {
		return nil, errMissingEntries
	}
	if deps.Notifier == nil {
		return nil, errMissingNotifier
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware(deps.Metrics))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		scores:            deps.Scores,
		calendar:          deps.Calendar,
		entries:           deps.Entries,
		notifier:          deps.Notifier,
		events:            deps.Events,
		sessions:          deps.Sessions,
		oauth:             deps.OAuth,
		states:            deps.OAuthStates,
		players:           deps.Players,
		metrics:           deps.Metrics,
		heartbeatInterval: heartbeat,
		logger:            logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.GET("/leaderboard/:category", handler.handleListLeaderboard)
	api.POST("/leaderboard", handler.handleSubmitLeaderboard)
	api.GET("/tournament/status", handler.handleTournamentStatus)
	api.GET("/tournament/results", handler.handleTournamentResults)
	api.POST("/tournament/submit", handler.handleTournamentSubmit)
	if deps.Events != nil {
		api.GET("/tournament/events", handler.handleTournamentEvents)
	}
	api.POST("/discord-catch", handler.handleDiscordCatch)

	if handler.loginEnabled() {
		api.GET("/auth/discord", handler.handleDiscordLogin)
		api.GET("/auth/discord/callback", handler.handleDiscordCallback)
		api.GET("/auth/me", handler.handleCurrentPlayer)
		api.POST("/auth/logout", handler.handleLogout)
	}

	return router, nil
}

type httpHandler struct {
	scores            ScoreStore
	calendar          *tournament.Calendar
	entries           TournamentSubmitter
	notifier          CatchNotifier
	events            EventSource
	sessions          *auth.SessionManager
	oauth             DiscordAuthenticator
	states            *auth.StateStore
	players           PlayerDirectory
	metrics           *metrics.Metrics
	heartbeatInterval time.Duration
	logger            *zap.Logger
}

func (h *httpHandler) loginEnabled() bool {
	return h.sessions != nil && h.oauth != nil && h.states != nil && h.players != nil
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Accept", "Cache-Control", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		// Credentials cannot be combined with a literal "*", so reflect the caller's origin.
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

func metricsMiddleware(recorder *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}
		started := time.Now()
		c.Next()
		recorder.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(started))
	}
}
