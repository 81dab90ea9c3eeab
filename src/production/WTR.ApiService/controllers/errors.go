package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	access "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Access"
	forecast "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	query "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Query"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrMissingDeviceID),
		errors.Is(err, forecast.ErrMissingDeviceID),
		errors.Is(err, forecast.ErrInvalidMeterType):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, access.ErrDeviceNotFound),
		errors.Is(err, forecast.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrNoValidData),
		errors.Is(err, forecast.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, forecast.ErrQueueFull),
		errors.Is(err, forecast.ErrPoolStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server-side failures are
// logged and their detail is not returned.
func respondError(ctx *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Logger.Error().Err(err).Str("path", ctx.Request.URL.Path).Msg("request failed")
		_ = ctx.Error(err)
		ctx.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
