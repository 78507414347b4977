package history

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/addanuj/mcp-client/pkg/logging"
)

const maxHistoryLimit = 200

type Handler struct {
	Store  *Store
	Logger logging.Logger
}

func NewHandler(store *Store, logger logging.Logger) *Handler {
	return &Handler{Store: store, Logger: logger}
}

func RegisterRoutes(router gin.IRoutes, h *Handler) {
	router.GET("/sessions/:id/history", h.HandleHistory)
}

// HandleHistory returns recorded exchanges, oldest first. ?limit= caps the
// count at maxHistoryLimit.
func (h *Handler) HandleHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	sessionID := c.Param("id")
	exchanges, err := h.Store.Recent(c.Request.Context(), sessionID, limit)
	if err != nil {
		h.Logger.WithError(err).WithField("session_id", sessionID).Error("Failed to load history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "exchanges": exchanges})
}
