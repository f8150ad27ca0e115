package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type askRequest struct {
	Query     string `json:"query" form:"query"`
	SessionID string `json:"session_id" form:"session_id"`
}

type askResponse struct {
	Response string `json:"response"`
}

// Ask godoc
// @Summary Answer a query from the session's documents and history
// @Tags chat
// @Accept json
// @Param body body askRequest false "Query and session"
// @Param query query string false "Query, when no body is sent"
// @Param session_id query string false "Chat session ID, when no body is sent"
// @Produce json
// @Success 200 {object} askResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/ask [post]
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if c.ContentType() == "application/json" && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
	} else if err := c.ShouldBindQuery(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	answer, err := h.chatService.Ask(c.Request.Context(), req.SessionID, req.Query)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, askResponse{Response: answer})
}

// GetChatHistory godoc
// @Summary Get chat history
// @Tags chat
// @Param session_id query string true "Chat session ID"
// @Produce json
// @Success 200 {array} rag.MemoryEntry
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/history [get]
func (h *Handler) GetChatHistory(c *gin.Context) {
	history, err := h.chatService.History(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, history)
}

// ListBookings godoc
// @Summary List bookings made in a session
// @Tags chat
// @Param session_id query string true "Chat session ID"
// @Produce json
// @Success 200 {array} rag.Booking
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bookings [get]
func (h *Handler) ListBookings(c *gin.Context) {
	bookings, err := h.chatService.Bookings(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, bookings)
}
