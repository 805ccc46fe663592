package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grudge-angeler/backend/internal/auth"
	"github.com/grudge-angeler/backend/internal/players"
	"go.uber.org/zap"
)

const (
	defaultReturnPath     = "/"
	codeInvalidState      = "invalid_state"
	codeLoginFailed       = "login_failed"
	codeUnauthorized      = "unauthorized"
	discordErrorParameter = "error"
)

// safeReturnPath only allows same-origin relative paths so the callback cannot be used as an open redirect.
func safeReturnPath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "//") || strings.Contains(trimmed, "\\") {
		return defaultReturnPath
	}
	return trimmed
}

func (h *httpHandler) handleDiscordLogin(c *gin.Context) {
	state, err := h.states.Issue(safeReturnPath(c.Query("returnTo")))
	if err != nil {
		h.logger.Error("failed to issue oauth state", zap.Error(err))
		respondError(c, http.StatusInternalServerError, codeInternal, messageInternal)
		return
	}
	c.Redirect(http.StatusFound, h.oauth.AuthorizeURL(state))
}

func (h *httpHandler) handleDiscordCallback(c *gin.Context) {
	returnTo, err := h.states.Consume(c.Query("state"))
	if err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidState, "login session expired, please try again")
		return
	}
	if denied := strings.TrimSpace(c.Query(discordErrorParameter)); denied != "" {
		h.logger.Info("discord login declined", zap.String("reason", denied))
		c.Redirect(http.StatusFound, returnTo)
		return
	}

	ctx := c.Request.Context()
	user, err := h.oauth.Authenticate(ctx, c.Query("code"))
	if err != nil {
		h.logger.Warn("discord login failed", zap.Error(err))
		respondError(c, http.StatusUnauthorized, codeLoginFailed, "discord login failed")
		return
	}
	identity, err := h.players.UpsertDiscordUser(ctx, user)
	if err != nil {
		h.logger.Error("failed to persist player identity", zap.String("discord_id", user.ID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, codeInternal, messageInternal)
		return
	}
	token, expiresAt, err := h.sessions.Issue(players.SessionClaims(identity))
	if err != nil {
		h.logger.Error("failed to issue session", zap.String("player_id", identity.PlayerID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, codeInternal, messageInternal)
		return
	}

	http.SetCookie(c.Writer, h.sessions.Cookie(token, expiresAt))
	h.logger.Info("player logged in", zap.String("player_id", identity.PlayerID), zap.String("username", identity.Username))
	c.Redirect(http.StatusFound, returnTo)
}

func (h *httpHandler) handleCurrentPlayer(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrInvalidSessionToken) {
			http.SetCookie(c.Writer, h.sessions.ClearCookie())
		}
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "not logged in")
		return
	}
	identity, err := h.players.Lookup(c.Request.Context(), claims.PlayerID)
	if errors.Is(err, players.ErrPlayerNotFound) {
		http.SetCookie(c.Writer, h.sessions.ClearCookie())
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "not logged in")
		return
	}
	if err != nil {
		h.logger.Error("failed to load player", zap.String("player_id", claims.PlayerID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, codeInternal, messageInternal)
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	http.SetCookie(c.Writer, h.sessions.ClearCookie())
	c.Status(http.StatusNoContent)
}
