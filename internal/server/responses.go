package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grudge-angeler/backend/internal/scores"
	"go.uber.org/zap"
)

const (
	codeInvalidRequest   = "invalid_request"
	codeInvalidCategory  = "invalid_category"
	codeInvalidDate      = "invalid_date"
	codeMissingFields    = "missing_fields"
	codeTournamentClosed = "tournament_closed"
	codeInternal         = "internal_error"
	messageInternal      = "internal server error"
	outcomeRejected      = "rejected"
	outcomeFailed        = "failed"
)

func respondError(c *gin.Context, status int, code string, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// validationCode prefers the service's dotted code so clients see the failing operation.
func validationCode(err error) string {
	var serviceErr *scores.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return codeInvalidRequest
}

func (h *httpHandler) respondStoreError(c *gin.Context, operation string, err error) {
	code := codeInternal
	var serviceErr *scores.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}
	h.logger.Error("request failed",
		zap.String("operation", operation),
		zap.String("code", code),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, code, messageInternal)
}

// queryLimit returns 0 for absent or non-numeric input so the store applies its default.
func queryLimit(c *gin.Context) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
