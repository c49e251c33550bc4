package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ufro-labs/norma-qa/api/middleware"
	"github.com/ufro-labs/norma-qa/api/model"
	"github.com/ufro-labs/norma-qa/internal/repository"
)

// DocumentHandler serves the catalog endpoints.
type DocumentHandler struct {
	repo   repository.DocumentRepository
	logger *logrus.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(repo repository.DocumentRepository) *DocumentHandler {
	return &DocumentHandler{
		repo:   repo,
		logger: middleware.GetLogger(),
	}
}

// ListDocuments lists catalog documents with pagination and filters.
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"invalid query parameters",
		))
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Vigencia != "" {
		filters["vigencia"] = req.Vigencia
	}
	if req.Title != "" {
		filters["title"] = req.Title
	}

	offset := (req.Page - 1) * req.PageSize
	docs, total, err := h.repo.List(offset, req.PageSize, filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to list documents",
		))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.ConvertDocument(doc)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      req.Page,
		PageSize:  req.PageSize,
		Documents: infos,
	}))
}

// GetDocument returns one catalog document.
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	docID := c.Param("id")

	doc, err := h.repo.GetByID(docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(
				http.StatusNotFound,
				"document not found",
			))
			return
		}
		h.logger.WithError(err).WithField("doc_id", docID).Error("Failed to load document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to load document",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConvertDocument(doc)))
}
