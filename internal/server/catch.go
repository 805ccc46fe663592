package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grudge-angeler/backend/internal/notify"
)

type catchRequest struct {
	FishName string   `json:"fishName" binding:"required"`
	Weight   *float64 `json:"weight" binding:"required"`
	Rarity   string   `json:"rarity" binding:"required"`
	Length   float64  `json:"length"`
	Username string   `json:"username"`
	Earnings float64  `json:"earnings"`
	Icon     string   `json:"icon"`
}

// handleDiscordCatch hands the catch to the notifier and answers immediately.
// Delivery failures never reach the caller.
func (h *httpHandler) handleDiscordCatch(c *gin.Context) {
	var request catchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeMissingFields, "Missing required fields")
		return
	}
	h.notifier.NotifyCatch(c.Request.Context(), notify.CatchEvent{
		FishName: request.FishName,
		Weight:   *request.Weight,
		Length:   request.Length,
		Rarity:   request.Rarity,
		Username: request.Username,
		Earnings: request.Earnings,
		Icon:     request.Icon,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
