package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soham-0-0-7/ai-quizzer/internal/apperr"
	"github.com/soham-0-0-7/ai-quizzer/internal/middleware"
	"github.com/soham-0-0-7/ai-quizzer/internal/services"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// respondError maps a service error to its status and caller-facing message.
// Server-side failures are logged with their cause.
func respondError(c *gin.Context, log *logrus.Entry, err error) {
	status := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		log.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": middleware.RequestIDFrom(c),
		}).WithError(err).Error("request failed")
	}
	c.JSON(status, ErrorResponse{Error: apperr.MessageOf(err)})
}

func identity(c *gin.Context) services.Identity {
	id, _ := middleware.CurrentIdentity(c)
	return id
}

func parseID(c *gin.Context, param string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
