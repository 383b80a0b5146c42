package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

type SubmissionHandler struct {
	submissionService *services.SubmissionService
	log               *logrus.Entry
}

func NewSubmissionHandler(submissionService *services.SubmissionService, log *logrus.Entry) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService, log: log}
}

// Submit godoc
// @Summary      Submit answers for grading
// @Description  Grades the answers, stores the submission and emails the result
// @Tags         submission
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.SubmitRequest true "Answers"
// @Success      200 {object} services.GradingResult
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /submission/submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	res, err := h.submissionService.Submit(c.Request.Context(), identity(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
