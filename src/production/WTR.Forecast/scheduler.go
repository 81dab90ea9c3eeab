package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	metrics "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Metrics"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
)

// Scheduler periodically forecasts a fixed device list as the system
// principal. Results are exported as gauges and logged, never stored.
type Scheduler struct {
	cron      *cron.Cron
	runner    Runner
	devices   []string
	algorithm string
	meterType string
	timeout   time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewScheduler(spec string, devices []string, algorithm, meterType string, runner Runner, log *logger.Logger, m *metrics.Metrics) (*Scheduler, error) {
	if _, err := Tariff(meterType); err != nil {
		return nil, fmt.Errorf("scheduled forecasts: %w", err)
	}

	l := log.WithComponent("forecast-scheduler")
	s := &Scheduler{
		runner:    runner,
		devices:   devices,
		algorithm: algorithm,
		meterType: meterType,
		timeout:   10 * time.Minute,
		logger:    l,
		metrics:   m,
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(l))))
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid FORECAST_SCHEDULE %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Logger.Info().Strs("devices", s.devices).Msg("forecast scheduler started")
}

// Stop stops the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce forecasts every configured device once.
func (s *Scheduler) RunOnce() {
	for _, id := range s.devices {
		log := s.logger.WithDevice(id)
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.runner.Forecast(ctx, Request{
			DeviceID:  id,
			Principal: auth_models.SystemPrincipal(),
			Algorithm: s.algorithm,
			MeterType: s.meterType,
		})
		cancel()
		if err != nil {
			log.ErrorWithError(err, "scheduled forecast failed")
			continue
		}
		if res.Message != "" {
			log.Logger.Info().Str("message", res.Message).Msg("scheduled forecast skipped")
			continue
		}

		s.metrics.PredictedPower.WithLabelValues(id).Set(res.PredictedPower)
		s.metrics.ForecastRMSE.WithLabelValues(id).Set(res.RMSE)
		s.metrics.HourlyCost.WithLabelValues(id, res.MeterType).Set(res.EstimatedHourlyCost)
		log.Logger.Info().
			Str("algo", res.AlgoUsed).
			Float64("predicted_power", res.PredictedPower).
			Float64("estimated_hourly_cost", res.EstimatedHourlyCost).
			Msg("scheduled forecast")
	}
}
