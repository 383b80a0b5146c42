package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

type DashboardHandler struct {
	dashboardService   *services.DashboardService
	leaderboardService *services.LeaderboardService
	log                *logrus.Entry
}

func NewDashboardHandler(dashboardService *services.DashboardService, leaderboardService *services.LeaderboardService,
	log *logrus.Entry) *DashboardHandler {
	return &DashboardHandler{
		dashboardService:   dashboardService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

type DateRangeRequest struct {
	From string `json:"from" binding:"required,slashdate" example:"01/09/25"`
	To   string `json:"to" binding:"required,slashdate" example:"30/09/25"`
}

// All godoc
// @Summary      List all submissions
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} services.EnrichedSubmission
// @Router       /dashboard/getAllSubmissions [get]
func (h *DashboardHandler) All(c *gin.Context) {
	h.respond(c, func() ([]services.EnrichedSubmission, error) {
		return h.dashboardService.All(c.Request.Context(), identity(c))
	})
}

// ByGrade godoc
// @Summary      Filter submissions by letter grade
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Param        grade path string true "Letter grade A-F"
// @Success      200 {array} services.EnrichedSubmission
// @Failure      400 {object} ErrorResponse
// @Router       /dashboard/gradeFilter/{grade} [get]
func (h *DashboardHandler) ByGrade(c *gin.Context) {
	h.respond(c, func() ([]services.EnrichedSubmission, error) {
		return h.dashboardService.ByGradepoint(c.Request.Context(), identity(c), c.Param("grade"))
	})
}

// BySubject godoc
// @Summary      Filter submissions by subject
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Param        subject path string true "Subject, case-insensitive"
// @Success      200 {array} services.EnrichedSubmission
// @Failure      400 {object} ErrorResponse
// @Router       /dashboard/subjectFilter/{subject} [get]
func (h *DashboardHandler) BySubject(c *gin.Context) {
	h.respond(c, func() ([]services.EnrichedSubmission, error) {
		return h.dashboardService.BySubject(c.Request.Context(), identity(c), c.Param("subject"))
	})
}

// ByDay godoc
// @Summary      Filter submissions by day
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Param        date path string true "Day as dd-mm-yy"
// @Success      200 {array} services.EnrichedSubmission
// @Failure      400 {object} ErrorResponse
// @Router       /dashboard/submissionDateFilter/{date} [get]
func (h *DashboardHandler) ByDay(c *gin.Context) {
	h.respond(c, func() ([]services.EnrichedSubmission, error) {
		return h.dashboardService.ByDay(c.Request.Context(), identity(c), c.Param("date"))
	})
}

// ByRange godoc
// @Summary      Filter submissions by an inclusive date range
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body DateRangeRequest true "Range as dd/mm/yy"
// @Success      200 {array} services.EnrichedSubmission
// @Failure      400 {object} ErrorResponse
// @Router       /dashboard/dateRangeFilter [post]
func (h *DashboardHandler) ByRange(c *gin.Context) {
	var req DateRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Dates must be in dd/mm/yy format."})
		return
	}

	h.respond(c, func() ([]services.EnrichedSubmission, error) {
		return h.dashboardService.ByRange(c.Request.Context(), identity(c), req.From, req.To)
	})
}

// Leaderboard godoc
// @Summary      Top ten submissions for a subject and/or grade
// @Tags         leaderboard
// @Produce      json
// @Security     BearerAuth
// @Param        subject query string false "Subject"
// @Param        grade query string false "Grade"
// @Success      200 {array} services.LeaderboardRow
// @Failure      400 {object} ErrorResponse
// @Router       /leaderboard [get]
func (h *DashboardHandler) Leaderboard(c *gin.Context) {
	rows, err := h.leaderboardService.Top(c.Request.Context(), c.Query("subject"), c.Query("grade"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *DashboardHandler) respond(c *gin.Context, fetch func() ([]services.EnrichedSubmission, error)) {
	subs, err := fetch()
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}
