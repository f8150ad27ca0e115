package v1

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragdesk/src/core/chunker"
	"ragdesk/src/core/rag"
)

// UploadDocument godoc
// @Summary Upload a PDF or TXT document into a session
// @Tags documents
// @Accept multipart/form-data
// @Param file formData file true "Document file"
// @Param description formData string true "Document description"
// @Param session_id formData string true "Chat session ID"
// @Param strategy formData string false "Chunking strategy (small or recursive)"
// @Produce json
// @Success 201 {object} rag.Document
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents/upload [post]
func (h *Handler) UploadDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("file upload required: %w", err))
		return
	}
	defer file.Close()

	description := c.PostForm("description")
	if description == "" {
		sendError(c, http.StatusBadRequest, fmt.Errorf("description is required"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to read file: %w", err))
		return
	}

	doc, err := h.docService.Upload(c.Request.Context(), rag.UploadRequest{
		SessionID:   c.PostForm("session_id"),
		Filename:    header.Filename,
		Description: description,
		Strategy:    c.DefaultPostForm("strategy", string(chunker.DefaultStrategy)),
		Content:     data,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusCreated, doc)
}

// ListDocuments godoc
// @Summary List documents of a session
// @Tags documents
// @Param session_id query string true "Chat session ID"
// @Produce json
// @Success 200 {array} rag.Document
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.docService.List(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, docs)
}

// GetDocument godoc
// @Summary Get a document
// @Tags documents
// @Param id path string true "Document ID"
// @Produce json
// @Success 200 {object} rag.Document
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents/{id} [get]
func (h *Handler) GetDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, err := h.docService.Get(c.Request.Context(), id)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, doc)
}

// DownloadDocument godoc
// @Summary Download the raw uploaded file of a document
// @Tags documents
// @Param id path string true "Document ID"
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents/{id}/file [get]
func (h *Handler) DownloadDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, content, err := h.docService.Open(c.Request.Context(), id)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	c.Data(http.StatusOK, doc.ContentType, content)
}

type reindexRequest struct {
	Strategy string `json:"strategy"`
}

// ReindexDocument godoc
// @Summary Re-chunk a document with another strategy in the background
// @Tags documents
// @Accept json
// @Param id path string true "Document ID"
// @Param body body reindexRequest false "Chunking strategy"
// @Produce json
// @Success 202 {object} job.Job
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents/{id}/reindex [post]
func (h *Handler) ReindexDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	var req reindexRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
	}
	strategy := chunker.ParseStrategy(req.Strategy)

	// fail fast instead of queueing a job for a missing document
	if _, err := h.docService.Get(c.Request.Context(), id); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	j, err := h.queue.EnqueueReindex(c.Request.Context(), id, string(strategy))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusAccepted, j)
}

func documentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("%w: invalid document id %q", rag.ErrInvalidRequest, c.Param("id")))
		return 0, false
	}
	return id, true
}
