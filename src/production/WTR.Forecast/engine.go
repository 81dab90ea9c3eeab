// Package forecast trains a per-device power model on stored history and
// turns its prediction into an hourly cost estimate.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	access "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Access"
	regression "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast/regression"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	metrics "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Metrics"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrMissingDeviceID  = errors.New("device_id is required")
	ErrInvalidMeterType = errors.New("invalid meter type")
	ErrNoValidData      = errors.New("no valid data after cleaning")
	ErrInsufficientData = errors.New("insufficient data for evaluation")
	ErrTrainingFailed   = errors.New("model training failed")
)

// NoDataMessage annotates the zero forecast of a device without history.
const NoDataMessage = "No data available"

const (
	trainRatio = 0.8
	splitSeed  = 42
)

// Request selects the device, model and tariff of one forecast.
type Request struct {
	DeviceID  string                `json:"device_id"`
	Principal auth_models.Principal `json:"-"`
	Algorithm string                `json:"algo"`
	MeterType string                `json:"meter_type"`
}

// Runner produces forecasts. Engine runs them inline, Pool on its workers.
type Runner interface {
	Forecast(ctx context.Context, req Request) (*wtrmodels.ForecastResult, error)
}

type Engine struct {
	store      interfaces.TelemetryRepository
	resolver   access.DeviceResolver
	logger     *logger.Logger
	metrics    *metrics.Metrics
	trainRatio float64
	seed       int64
}

func NewEngine(store interfaces.TelemetryRepository, resolver access.DeviceResolver, log *logger.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:      store,
		resolver:   resolver,
		logger:     log.WithComponent("forecast"),
		metrics:    m,
		trainRatio: trainRatio,
		seed:       splitSeed,
	}
}

type sample struct {
	features []float64
	target   float64
}

func (e *Engine) Forecast(ctx context.Context, req Request) (*wtrmodels.ForecastResult, error) {
	algo := LookupAlgorithm(req.Algorithm)
	start := time.Now()

	result, err := e.forecast(ctx, req, algo)

	e.metrics.ForecastDuration.WithLabelValues(algo.Key).Observe(time.Since(start).Seconds())
	e.metrics.ForecastRuns.WithLabelValues(algo.Key, outcomeLabel(err)).Inc()
	if err != nil {
		e.logger.Logger.Warn().Err(err).Str("device_id", req.DeviceID).Str("algo", algo.Key).Msg("forecast failed")
		return nil, err
	}
	e.logger.Logger.Info().
		Str("device_id", req.DeviceID).
		Str("algo", algo.Key).
		Float64("predicted_power", result.PredictedPower).
		Float64("rmse", result.RMSE).
		Dur("took", time.Since(start)).
		Msg("forecast completed")
	return result, nil
}

func (e *Engine) forecast(ctx context.Context, req Request, algo Algorithm) (*wtrmodels.ForecastResult, error) {
	if req.DeviceID == "" {
		return nil, ErrMissingDeviceID
	}
	tariff, err := Tariff(req.MeterType)
	if err != nil {
		return nil, err
	}

	device, err := e.resolver.Resolve(ctx, req.DeviceID, req.Principal)
	if err != nil {
		return nil, err
	}

	result := &wtrmodels.ForecastResult{
		DeviceID:     req.DeviceID,
		DeviceName:   device.Name,
		AlgoUsed:     algo.Label,
		MeterType:    req.MeterType,
		TariffPerKWh: tariff.InexactFloat64(),
	}

	history, err := e.store.Range(ctx, req.DeviceID, time.Time{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	result.DataStats.TotalRecords = len(history)
	if len(history) == 0 {
		result.Message = NoDataMessage
		return result, nil
	}

	samples := clean(history)
	result.DataStats.CleanRecords = len(samples)
	if len(samples) == 0 {
		return nil, ErrNoValidData
	}

	train, test := split(samples, e.trainRatio, e.seed)
	result.DataStats.TrainRecords = len(train)
	result.DataStats.TestRecords = len(test)
	if len(test) == 0 {
		return nil, fmt.Errorf("%w: %d clean records, none held out", ErrInsufficientData, len(samples))
	}

	model := algo.New()
	tx, ty := matrix(train)
	if err := model.Fit(tx, ty); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTrainingFailed, algo.Key, err)
	}

	ex, actual := matrix(test)
	predicted := regression.PredictAll(model, ex)
	rmse := floats.Distance(predicted, actual, 2) / math.Sqrt(float64(len(actual)))
	mean := stat.Mean(predicted, nil)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil, fmt.Errorf("%w: %s produced non-finite predictions", ErrTrainingFailed, algo.Key)
	}

	cost, err := HourlyCost(mean, req.MeterType)
	if err != nil {
		return nil, err
	}
	result.PredictedPower = mean
	result.RMSE = rmse
	result.EstimatedHourlyCost = cost.InexactFloat64()
	return result, nil
}

// clean keeps points that carry every feature and the target.
func clean(points []wtrmodels.TelemetryPoint) []sample {
	out := make([]sample, 0, len(points))
	for _, p := range points {
		if p.Voltage == nil || p.Current == nil || p.PowerFactor == nil || p.Power == nil {
			continue
		}
		out = append(out, sample{
			features: []float64{*p.Voltage, *p.Current, *p.PowerFactor},
			target:   *p.Power,
		})
	}
	return out
}

// split assigns each sample to the training side with probability ratio,
// drawing from a fixed seed so unchanged data always splits the same way.
func split(samples []sample, ratio float64, seed int64) (train, test []sample) {
	rng := rand.New(rand.NewSource(seed))
	for _, s := range samples {
		if rng.Float64() < ratio {
			train = append(train, s)
		} else {
			test = append(test, s)
		}
	}
	return train, test
}

func matrix(samples []sample) ([][]float64, []float64) {
	X := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		X[i] = s.features
		y[i] = s.target
	}
	return X, y
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingDeviceID), errors.Is(err, ErrInvalidMeterType):
		return "invalid_request"
	case errors.Is(err, access.ErrDeviceNotFound), errors.Is(err, access.ErrForbidden):
		return "unauthorized"
	case errors.Is(err, ErrNoValidData), errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrTrainingFailed):
		return "training_failed"
	default:
		return "error"
	}
}
