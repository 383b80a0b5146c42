package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db    *gorm.DB
	redis redis.Cmdable
	log   *logrus.Entry
}

func NewHealthHandler(db *gorm.DB, rdb redis.Cmdable, log *logrus.Entry) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, log: log}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Check godoc
// @Summary      Liveness and dependency check
// @Tags         ops
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /healthz [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Redis: "ok"}

	if err := h.pingDB(ctx); err != nil {
		h.log.WithError(err).Warn("database health check failed")
		resp.Status, resp.Database = "degraded", "unreachable"
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.log.WithError(err).Warn("redis health check failed")
		resp.Status, resp.Redis = "degraded", "unreachable"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
