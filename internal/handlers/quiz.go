package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

type QuizHandler struct {
	quizService *services.QuizService
	hintService *services.HintService
	log         *logrus.Entry
}

func NewQuizHandler(quizService *services.QuizService, hintService *services.HintService, log *logrus.Entry) *QuizHandler {
	return &QuizHandler{quizService: quizService, hintService: hintService, log: log}
}

// GenerateRequest keeps the mixed-case keys clients already send.
type GenerateRequest struct {
	Grade          int     `json:"grade" example:"7"`
	Subject        string  `json:"Subject" example:"Maths"`
	TotalQuestions int     `json:"TotalQuestions" example:"5"`
	MaxScore       float64 `json:"MaxScore" example:"10"`
	Difficulty     string  `json:"Difficulty" example:"medium"`
}

// Generate godoc
// @Summary      Generate a quiz
// @Description  Asks the model for a new quiz, adapted to past results in the same grade and subject
// @Tags         quiz
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body GenerateRequest true "Quiz parameters"
// @Success      200 {object} services.GenerateResult
// @Failure      400 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /quiz/generate [post]
func (h *QuizHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	res, err := h.quizService.Generate(c.Request.Context(), identity(c), services.GenerateParams{
		Grade:          req.Grade,
		Subject:        req.Subject,
		TotalQuestions: req.TotalQuestions,
		MaxScore:       req.MaxScore,
		Difficulty:     req.Difficulty,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// View godoc
// @Summary      View a quiz without answers
// @Tags         quiz
// @Produce      json
// @Security     BearerAuth
// @Param        quizid path int true "Quiz ID"
// @Success      200 {object} services.QuizView
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /quiz/view/{quizid} [get]
func (h *QuizHandler) View(c *gin.Context) {
	quizID, ok := parseID(c, "quizid")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid quiz id"})
		return
	}

	view, err := h.quizService.View(c.Request.Context(), identity(c), quizID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Hint godoc
// @Summary      Get a hint for a question
// @Tags         question
// @Produce      json
// @Security     BearerAuth
// @Param        questionid path int true "Question ID"
// @Success      200 {object} services.HintResult
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /question/hint/{questionid} [get]
func (h *QuizHandler) Hint(c *gin.Context) {
	questionID, ok := parseID(c, "questionid")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid question id"})
		return
	}

	hint, err := h.hintService.Hint(c.Request.Context(), identity(c), questionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, hint)
}
