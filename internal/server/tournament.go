package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grudge-angeler/backend/internal/scores"
	"github.com/grudge-angeler/backend/internal/tournament"
)

const submissionKindTournament = "tournament"

type tournamentStatusResponse struct {
	Active   bool             `json:"active"`
	Date     string           `json:"date"`
	Phase    tournament.Phase `json:"phase"`
	StartsIn *int64           `json:"startsIn,omitempty"`
	EndsIn   *int64           `json:"endsIn,omitempty"`
}

type tournamentSubmitRequest struct {
	PlayerName      string   `json:"playerName" binding:"required"`
	TotalCaught     int64    `json:"totalCaught"`
	TotalWeight     float64  `json:"totalWeight"`
	LargestCatch    float64  `json:"largestCatch"`
	LargestFishName *string  `json:"largestFishName"`
	RarityScore     int64    `json:"rarityScore"`
	CompositeScore  *float64 `json:"compositeScore" binding:"required"`
}

func (r tournamentSubmitRequest) submission() scores.TournamentSubmission {
	submission := scores.TournamentSubmission{
		PlayerName:     r.PlayerName,
		TotalCaught:    r.TotalCaught,
		TotalWeight:    r.TotalWeight,
		LargestCatch:   r.LargestCatch,
		RarityScore:    r.RarityScore,
		CompositeScore: *r.CompositeScore,
	}
	if r.LargestFishName != nil {
		submission.LargestFishName = *r.LargestFishName
	}
	return submission
}

type tournamentSubmitResponse struct {
	Entry             scores.TournamentEntry `json:"entry"`
	Rank              int                    `json:"rank"`
	TotalParticipants int                    `json:"totalParticipants"`
}

func (h *httpHandler) handleTournamentStatus(c *gin.Context) {
	status := h.calendar.Status()
	c.JSON(http.StatusOK, tournamentStatusResponse{
		Active:   status.Active,
		Date:     status.Date,
		Phase:    status.Phase,
		StartsIn: status.SecondsUntilStart,
		EndsIn:   status.SecondsUntilEnd,
	})
}

func (h *httpHandler) handleTournamentResults(c *gin.Context) {
	date := h.calendar.CurrentDate()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := tournament.ParseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, codeInvalidDate, "date must be formatted as YYYY-MM-DD")
			return
		}
		date = parsed
	}

	results, err := h.scores.ListTournamentResults(c.Request.Context(), date, queryLimit(c))
	if err != nil {
		h.respondStoreError(c, "tournament.results", err)
		return
	}
	if results == nil {
		results = []scores.TournamentEntry{}
	}
	c.JSON(http.StatusOK, results)
}

func (h *httpHandler) handleTournamentSubmit(c *gin.Context) {
	var request tournamentSubmitRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "playerName and compositeScore are required")
		return
	}

	result, err := h.entries.Submit(c.Request.Context(), request.submission())
	switch {
	case err == nil:
	case errors.Is(err, tournament.ErrWindowClosed):
		h.metrics.RecordSubmission(submissionKindTournament, outcomeRejected)
		respondError(c, http.StatusBadRequest, codeTournamentClosed, "Tournament is not currently active")
		return
	case scores.IsValidationError(err):
		h.metrics.RecordSubmission(submissionKindTournament, outcomeRejected)
		respondError(c, http.StatusBadRequest, validationCode(err), err.Error())
		return
	default:
		h.metrics.RecordSubmission(submissionKindTournament, outcomeFailed)
		h.respondStoreError(c, "tournament.submit", err)
		return
	}

	h.metrics.RecordSubmission(submissionKindTournament, string(result.Outcome))
	c.JSON(http.StatusOK, tournamentSubmitResponse{
		Entry:             result.Entry,
		Rank:              result.Rank,
		TotalParticipants: result.TotalParticipants,
	})
}
