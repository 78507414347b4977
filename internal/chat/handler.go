package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/addanuj/mcp-client/pkg/logging"
)

type ChatHandler struct {
	Orchestrator *Orchestrator
	Logger       logging.Logger
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

func NewChatHandler(orchestrator *Orchestrator, logger logging.Logger) *ChatHandler {
	return &ChatHandler{Orchestrator: orchestrator, Logger: logger}
}

func RegisterRoutes(router gin.IRoutes, handler *ChatHandler) {
	router.POST("/chat", handler.HandleChat)
	router.GET("/sessions/:id", handler.HandleGetSession)
	router.DELETE("/sessions/:id", handler.HandleDeleteSession)
	router.GET("/tools", handler.HandleListTools)
}

// HandleChat runs one turn and streams it as server-sent events, one JSON
// Event per "data:" frame. The stream ends with exactly one content_final or
// error event. When deltas are enabled, content_delta frames carry the answer
// as it is produced and content_final repeats the complete answer; clients
// replace the accumulated deltas with content_final. A clarification or
// confirmation turn sends no content_delta frames.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	if h == nil || h.Orchestrator == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "orchestrator unavailable"})
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	turn, err := Request{SessionID: req.SessionID, Message: req.Message}.Normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	streamer, err := newSSEStreamer(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unavailable"})
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Session-ID", turn.SessionID)
	c.Status(http.StatusOK)

	if err := h.Orchestrator.Run(c.Request.Context(), turn, streamer); err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			_ = streamer.Send(Event{Type: EventError, Content: reqErr.Message})
			return
		}
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("session_id", turn.SessionID).Info("Chat stream ended early")
		}
	}
}

func (h *ChatHandler) HandleGetSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}
	info, err := h.Orchestrator.Session(c.Request.Context(), id)
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("session_id", id).Warn("Failed to load session")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// HandleDeleteSession ends the session; state is cleared once a running turn releases it.
func (h *ChatHandler) HandleDeleteSession(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}
	h.Orchestrator.EndSession(id)
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) HandleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.Orchestrator.Tools()})
}

// sseStreamer writes turn events as server-sent events.
type sseStreamer struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func newSSEStreamer(writer http.ResponseWriter) (*sseStreamer, error) {
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	return &sseStreamer{writer: writer, flusher: flusher}, nil
}

func (s *sseStreamer) Send(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
