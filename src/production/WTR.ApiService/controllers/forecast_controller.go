package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/middleware"
	forecast "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
)

// JobQueue is the asynchronous forecast contract.
type JobQueue interface {
	forecast.Runner
	Submit(req forecast.Request) (string, error)
	Get(id string) (forecast.Job, error)
}

// ForecastDefaults fills request fields the caller left empty.
type ForecastDefaults struct {
	Algorithm string
	MeterType string
}

// ForecastController serves the prediction endpoints
type ForecastController struct {
	jobs           JobQueue
	defaults       ForecastDefaults
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
}

// NewForecastController creates a new forecast controller
func NewForecastController(jobs JobQueue, defaults ForecastDefaults, logger *logger.Logger, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter) *ForecastController {
	return &ForecastController{
		jobs:           jobs,
		defaults:       defaults,
		logger:         logger,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
	}
}

// RegisterRoutes registers the prediction routes with Gin
func (c *ForecastController) RegisterRoutes(router *gin.Engine) {
	prediction := router.Group("/prediction", c.authMiddleware.Authenticate())
	{
		prediction.GET("/options", c.GetOptions)
		prediction.GET("/jobs/:id", c.GetJob)

		limited := prediction.Group("", c.rateLimiter.Limit())
		limited.GET("/run/", c.RunForecast)
		limited.POST("/jobs", c.SubmitJob)
	}
}

type ForecastRequest struct {
	DeviceID  string `json:"device_id" form:"device_id"`
	Algorithm string `json:"algo" form:"algo"`
	MeterType string `json:"meter_type" form:"meter_type"`
}

func (c *ForecastController) request(ctx *gin.Context, in ForecastRequest) (forecast.Request, bool) {
	principal, err := middleware.GetPrincipalFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return forecast.Request{}, false
	}
	req := forecast.Request{
		DeviceID:  in.DeviceID,
		Principal: principal,
		Algorithm: in.Algorithm,
		MeterType: in.MeterType,
	}
	if req.Algorithm == "" {
		req.Algorithm = c.defaults.Algorithm
	}
	if req.MeterType == "" {
		req.MeterType = c.defaults.MeterType
	}
	// input errors are reported before queueing
	if req.DeviceID == "" {
		respondError(ctx, c.logger, forecast.ErrMissingDeviceID)
		return forecast.Request{}, false
	}
	if _, err := forecast.Tariff(req.MeterType); err != nil {
		respondError(ctx, c.logger, err)
		return forecast.Request{}, false
	}
	return req, true
}

// RunForecast trains and evaluates synchronously on the worker pool.
func (c *ForecastController) RunForecast(ctx *gin.Context) {
	var in ForecastRequest
	if err := ctx.ShouldBindQuery(&in); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, ok := c.request(ctx, in)
	if !ok {
		return
	}

	result, err := c.jobs.Forecast(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (c *ForecastController) SubmitJob(ctx *gin.Context) {
	var in ForecastRequest
	if err := ctx.ShouldBindJSON(&in); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, ok := c.request(ctx, in)
	if !ok {
		return
	}

	id, err := c.jobs.Submit(req)
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	ctx.Header("Location", "/prediction/jobs/"+id)
	ctx.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": forecast.JobQueued})
}

// GetJob returns a job snapshot. Only the submitter or an admin may read it.
func (c *ForecastController) GetJob(ctx *gin.Context) {
	principal, err := middleware.GetPrincipalFromGinContext(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	job, err := c.jobs.Get(ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, err)
		return
	}
	if !principal.IsAdmin() && job.SubmittedBy != principal.UserID {
		respondError(ctx, c.logger, forecast.ErrJobNotFound)
		return
	}
	if job.Err != nil && statusFor(job.Err) == http.StatusInternalServerError {
		job.Error = http.StatusText(http.StatusInternalServerError)
	}
	ctx.JSON(http.StatusOK, job)
}

func (c *ForecastController) GetOptions(ctx *gin.Context) {
	tariffs := make(map[string]float64)
	for _, m := range forecast.MeterTypes() {
		t, _ := forecast.Tariff(m)
		tariffs[m] = t.InexactFloat64()
	}
	ctx.JSON(http.StatusOK, gin.H{
		"algorithms":         forecast.Algorithms(),
		"default_algorithm":  c.defaults.Algorithm,
		"meter_types":        forecast.MeterTypes(),
		"tariffs":            tariffs,
		"default_meter_type": c.defaults.MeterType,
	})
}
