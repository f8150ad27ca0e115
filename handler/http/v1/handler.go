package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragdesk/src/core/rag"
	"ragdesk/src/infrastructure/job"
	"ragdesk/src/log"
)

type DocumentService interface {
	Upload(ctx context.Context, req rag.UploadRequest) (*rag.Document, error)
	Get(ctx context.Context, id int64) (*rag.Document, error)
	Open(ctx context.Context, id int64) (*rag.Document, []byte, error)
	List(ctx context.Context, sessionID string) ([]rag.Document, error)
}

type ChatService interface {
	Ask(ctx context.Context, sessionID, query string) (string, error)
	History(ctx context.Context, sessionID string) ([]rag.MemoryEntry, error)
	Bookings(ctx context.Context, sessionID string) ([]rag.Booking, error)
}

type ReindexQueue interface {
	EnqueueReindex(ctx context.Context, documentID int64, strategy string) (*job.Job, error)
}

// HealthCheck probes one backing service
type HealthCheck func(ctx context.Context) error

type Handler struct {
	docService  DocumentService
	chatService ChatService
	queue       ReindexQueue
	checks      map[string]HealthCheck
}

func NewHandler(docService DocumentService, chatService ChatService, queue ReindexQueue, checks map[string]HealthCheck) *Handler {
	return &Handler{
		docService:  docService,
		chatService: chatService,
		queue:       queue,
		checks:      checks,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")

	// Document routes
	api.POST("/documents/upload", h.UploadDocument)
	api.GET("/documents", h.ListDocuments)
	api.GET("/documents/:id", h.GetDocument)
	api.GET("/documents/:id/file", h.DownloadDocument)
	api.POST("/documents/:id/reindex", h.ReindexDocument)

	// Chat routes
	api.POST("/chat/ask", h.Ask)
	api.GET("/chat/history", h.GetChatHistory)
	api.GET("/bookings", h.ListBookings)

	// System routes
	r.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError maps domain errors to a status; status is used for anything unrecognised.
func sendError(c *gin.Context, status int, err error) {
	var code string
	switch {
	case errors.Is(err, rag.ErrInvalidRequest):
		code = "INVALID_REQUEST"
		status = http.StatusBadRequest
	case errors.Is(err, rag.ErrUnsupportedFileType):
		code = "UNSUPPORTED_FILE_TYPE"
		status = http.StatusBadRequest
	case errors.Is(err, rag.ErrDocumentNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.Is(err, rag.ErrEmptyDocument):
		code = "EMPTY_DOCUMENT"
		status = http.StatusUnprocessableEntity
	case status == http.StatusBadRequest:
		code = "INVALID_REQUEST"
	default:
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		log.Error(err, "request failed", "method", c.Request.Method, "path", c.FullPath())
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
