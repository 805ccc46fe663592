package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grudge-angeler/backend/internal/scores"
)

const submissionKindLeaderboard = "leaderboard"

type leaderboardRequest struct {
	PlayerName string   `json:"playerName" binding:"required"`
	Category   string   `json:"category" binding:"required"`
	FishName   *string  `json:"fishName"`
	FishRarity *string  `json:"fishRarity"`
	Value      *float64 `json:"value" binding:"required"`
	Score      *int64   `json:"score"`
}

func (r leaderboardRequest) submission(category scores.Category) scores.LeaderboardSubmission {
	submission := scores.LeaderboardSubmission{
		PlayerName: r.PlayerName,
		Category:   category,
		Value:      *r.Value,
	}
	if r.FishName != nil {
		submission.FishName = *r.FishName
	}
	if r.FishRarity != nil {
		submission.FishRarity = scores.Rarity(*r.FishRarity)
	}
	if r.Score != nil {
		submission.Score = *r.Score
	}
	return submission
}

func (h *httpHandler) handleListLeaderboard(c *gin.Context) {
	category, err := scores.ParseCategory(c.Param("category"))
	if err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidCategory, err.Error())
		return
	}

	entries, err := h.scores.ListLeaderboard(c.Request.Context(), category, queryLimit(c))
	if err != nil {
		h.respondStoreError(c, "leaderboard.list", err)
		return
	}
	if entries == nil {
		entries = []scores.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) handleSubmitLeaderboard(c *gin.Context) {
	var request leaderboardRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "playerName, category and value are required")
		return
	}
	category, err := scores.ParseCategory(request.Category)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidCategory, err.Error())
		return
	}

	result, err := h.scores.SubmitLeaderboardEntry(c.Request.Context(), request.submission(category))
	if err != nil {
		if scores.IsValidationError(err) {
			h.metrics.RecordSubmission(submissionKindLeaderboard, outcomeRejected)
			respondError(c, http.StatusBadRequest, validationCode(err), err.Error())
			return
		}
		h.metrics.RecordSubmission(submissionKindLeaderboard, outcomeFailed)
		h.respondStoreError(c, "leaderboard.submit", err)
		return
	}
	h.metrics.RecordSubmission(submissionKindLeaderboard, string(result.Outcome))
	c.JSON(http.StatusOK, result.Entry)
}
