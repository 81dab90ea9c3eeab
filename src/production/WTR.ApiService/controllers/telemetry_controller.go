package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/middleware"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
)

// TelemetryQuerier answers device-scoped telemetry reads.
type TelemetryQuerier interface {
	GetLatest(ctx context.Context, deviceID string, principal auth_models.Principal) (*wtrmodels.LatestReading, error)
	GetRange(ctx context.Context, deviceID string, principal auth_models.Principal, window string) (*wtrmodels.RangeResult, error)
}

// TelemetryController serves the monitoring endpoints
type TelemetryController struct {
	query          TelemetryQuerier
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewTelemetryController creates a new telemetry controller
func NewTelemetryController(query TelemetryQuerier, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware) *TelemetryController {
	return &TelemetryController{
		query:          query,
		logger:         logger,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the monitoring routes with Gin
func (c *TelemetryController) RegisterRoutes(router *gin.Engine) {
	monitoring := router.Group("/monitoring", c.authMiddleware.Authenticate())
	{
		monitoring.GET("/api/", c.GetLatest)
		monitoring.GET("/history/", c.GetHistory)
	}
}

func (c *TelemetryController) GetLatest(ctx *gin.Context) {
	principal, err := middleware.GetPrincipalFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	reading, err := c.query.GetLatest(ctx.Request.Context(), ctx.Query("device_id"), principal)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, reading)
}

func (c *TelemetryController) GetHistory(ctx *gin.Context) {
	principal, err := middleware.GetPrincipalFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	result, err := c.query.GetRange(ctx.Request.Context(), ctx.Query("device_id"), principal, ctx.DefaultQuery("range", "1h"))
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}
