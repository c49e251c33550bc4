package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ufro-labs/norma-qa/api/middleware"
	"github.com/ufro-labs/norma-qa/api/model"
	"github.com/ufro-labs/norma-qa/internal/services"
)

// QAHandler serves the question answering endpoint.
type QAHandler struct {
	qaService *services.QAService
	logger    *logrus.Logger
}

// NewQAHandler creates a QA handler.
func NewQAHandler(qaService *services.QAService) *QAHandler {
	return &QAHandler{
		qaService: qaService,
		logger:    middleware.GetLogger(),
	}
}

// Ask answers a question.
// POST /api/ask
//
// With compare set, every backend is asked; otherwise a single backend can
// be chosen by provider ID. An abstention is a normal 200 response.
func (h *QAHandler) Ask(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid ask request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"question is required",
		))
		return
	}

	ctx := c.Request.Context()
	h.logger.WithFields(logrus.Fields{
		"question": req.Question,
		"provider": req.Provider,
		"compare":  req.Compare,
	}).Info("Answering question")

	var responses []services.ProviderResponse
	var err error
	if req.Compare {
		var byName map[string]services.ProviderResponse
		byName, err = h.qaService.Compare(ctx, req.Question)
		for _, resp := range byName {
			responses = append(responses, resp)
		}
	} else {
		responses, err = h.qaService.ProcessQuery(ctx, req.Question, req.Provider)
	}
	if err != nil {
		h.logger.WithError(err).WithField("question", req.Question).Error("Failed to answer question")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to answer question: "+err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.AskResponse{
		Question: req.Question,
		Answers:  model.ConvertAnswers(responses),
	}))
}
