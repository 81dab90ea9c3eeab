package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/health"
	jwt "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/implementation/jwt"
	"gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.ApiService/middleware"
	access "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Access"
	forecast "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	metrics "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Metrics"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
	api_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/api"
	query "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Query"
	implementation "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Implementation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	claims := api_models.AccessClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    "wattara",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
		Role:   role,
	}
	s, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return "Bearer " + s
}

func authMiddleware() *middleware.AuthMiddleware {
	return middleware.NewAuthMiddleware(jwt.NewService("secret", "wattara"), middleware.DefaultConfig())
}

func do(r *gin.Engine, method, target, auth string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newTelemetryRouter(t *testing.T) (*gin.Engine, *implementation.MemoryTelemetryRepository) {
	t.Helper()
	devices, err := implementation.ParseStaticDevices([]string{"dev-1:alice:Kitchen", "dev-2:bob:Garage"})
	require.NoError(t, err)
	resolver, err := access.NewResolver(implementation.NewStaticDeviceRepository(devices), 0, 0)
	require.NoError(t, err)
	store := implementation.NewMemoryTelemetryRepository()

	r := gin.New()
	NewTelemetryController(query.NewEngine(store, resolver), logger.NewNop(), authMiddleware()).RegisterRoutes(r)
	return r, store
}

func TestTelemetryLatest(t *testing.T) {
	r, store := newTelemetryRouter(t)
	require.NoError(t, store.Insert(context.Background(), wtrmodels.TelemetryPoint{
		DeviceID: "dev-1", Timestamp: time.Now().UTC(), Power: wtrmodels.Float(321),
	}))

	w := do(r, http.MethodGet, "/monitoring/api/?device_id=dev-1", token(t, "alice", "user"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got wtrmodels.LatestReading
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Kitchen", got.DeviceName)
	assert.Equal(t, 321.0, got.Power)
}

func TestTelemetryStatusCodes(t *testing.T) {
	r, _ := newTelemetryRouter(t)
	alice := token(t, "alice", "user")

	tests := []struct {
		name   string
		target string
		auth   string
		status int
	}{
		{"unauthenticated", "/monitoring/api/?device_id=dev-1", "", http.StatusUnauthorized},
		{"missing device id", "/monitoring/api/", alice, http.StatusBadRequest},
		{"unknown device", "/monitoring/api/?device_id=nope", alice, http.StatusNotFound},
		{"foreign device", "/monitoring/api/?device_id=dev-2", alice, http.StatusForbidden},
		{"admin reads any device", "/monitoring/api/?device_id=dev-2", token(t, "root", "admin"), http.StatusOK},
		{"history", "/monitoring/history/?device_id=dev-1&range=24h", alice, http.StatusOK},
		{"history foreign", "/monitoring/history/?device_id=dev-2", alice, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, tt.auth, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestTelemetryHistoryEmpty(t *testing.T) {
	r, _ := newTelemetryRouter(t)

	w := do(r, http.MethodGet, "/monitoring/history/?device_id=dev-1&range=bogus", token(t, "alice", "user"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got wtrmodels.RangeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 0, got.Count)
	assert.Empty(t, got.Data)
}

type fakeJobs struct {
	result    *wtrmodels.ForecastResult
	err       error
	submitErr error
	requests  []forecast.Request
	jobs      map[string]forecast.Job
}

func (f *fakeJobs) Forecast(_ context.Context, req forecast.Request) (*wtrmodels.ForecastResult, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeJobs) Submit(req forecast.Request) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.requests = append(f.requests, req)
	id := fmt.Sprintf("job-%d", len(f.requests))
	f.jobs[id] = forecast.Job{ID: id, Status: forecast.JobQueued, DeviceID: req.DeviceID, SubmittedBy: req.Principal.UserID}
	return id, nil
}

func (f *fakeJobs) Get(id string) (forecast.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return forecast.Job{}, forecast.ErrJobNotFound
	}
	return j, nil
}

func newForecastRouter(t *testing.T, jobs *fakeJobs) *gin.Engine {
	t.Helper()
	if jobs.jobs == nil {
		jobs.jobs = make(map[string]forecast.Job)
	}
	rl, err := middleware.NewRateLimiter(100, 100, 16)
	require.NoError(t, err)

	r := gin.New()
	defaults := ForecastDefaults{Algorithm: forecast.DefaultAlgorithm, MeterType: "900VA"}
	NewForecastController(jobs, defaults, logger.NewNop(), authMiddleware(), rl).RegisterRoutes(r)
	return r
}

func TestRunForecastAppliesDefaults(t *testing.T) {
	jobs := &fakeJobs{result: &wtrmodels.ForecastResult{DeviceID: "dev-1", PredictedPower: 500}}
	r := newForecastRouter(t, jobs)

	w := do(r, http.MethodGet, "/prediction/run/?device_id=dev-1", token(t, "alice", "user"), "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, jobs.requests, 1)
	req := jobs.requests[0]
	assert.Equal(t, "rf", req.Algorithm)
	assert.Equal(t, "900VA", req.MeterType)
	assert.Equal(t, "alice", req.Principal.UserID)
	assert.Contains(t, w.Body.String(), `"predicted_power":500`)
}

func TestRunForecastValidation(t *testing.T) {
	jobs := &fakeJobs{}
	r := newForecastRouter(t, jobs)
	alice := token(t, "alice", "user")

	w := do(r, http.MethodGet, "/prediction/run/", alice, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/prediction/run/?device_id=dev-1&meter_type=999VA", alice, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, jobs.requests, "invalid requests never reach the pool")
}

func TestRunForecastErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{access.ErrForbidden, http.StatusForbidden},
		{access.ErrDeviceNotFound, http.StatusNotFound},
		{forecast.ErrNoValidData, http.StatusUnprocessableEntity},
		{forecast.ErrInsufficientData, http.StatusUnprocessableEntity},
		{forecast.ErrQueueFull, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: boom", forecast.ErrTrainingFailed), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := newForecastRouter(t, &fakeJobs{err: tt.err})
			w := do(r, http.MethodGet, "/prediction/run/?device_id=dev-1", token(t, "alice", "user"), "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	r := newForecastRouter(t, &fakeJobs{err: errors.New("mongo: connection refused at 10.0.0.7")})

	w := do(r, http.MethodGet, "/prediction/run/?device_id=dev-1", token(t, "alice", "user"), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.7")
}

func TestSubmitAndGetJob(t *testing.T) {
	jobs := &fakeJobs{}
	r := newForecastRouter(t, jobs)
	alice := token(t, "alice", "user")

	w := do(r, http.MethodPost, "/prediction/jobs", alice, `{"device_id":"dev-1","algo":"gbt"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, "queued", accepted.Status)
	assert.Equal(t, "/prediction/jobs/"+accepted.JobID, w.Header().Get("Location"))
	assert.Equal(t, "gbt", jobs.requests[0].Algorithm)

	w = do(r, http.MethodGet, "/prediction/jobs/"+accepted.JobID, alice, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/prediction/jobs/"+accepted.JobID, token(t, "bob", "user"), "")
	assert.Equal(t, http.StatusNotFound, w.Code, "other users cannot see the job")

	w = do(r, http.MethodGet, "/prediction/jobs/"+accepted.JobID, token(t, "root", "admin"), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/prediction/jobs/missing", alice, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitJobQueueFull(t *testing.T) {
	r := newForecastRouter(t, &fakeJobs{submitErr: forecast.ErrQueueFull})

	w := do(r, http.MethodPost, "/prediction/jobs", token(t, "alice", "user"), `{"device_id":"dev-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubmitJobBadBody(t *testing.T) {
	r := newForecastRouter(t, &fakeJobs{})

	w := do(r, http.MethodPost, "/prediction/jobs", token(t, "alice", "user"), `{"device_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOptions(t *testing.T) {
	r := newForecastRouter(t, &fakeJobs{})

	w := do(r, http.MethodGet, "/prediction/options", token(t, "alice", "user"), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Algorithms []struct {
			Key   string `json:"key"`
			Label string `json:"label"`
		} `json:"algorithms"`
		MeterTypes []string           `json:"meter_types"`
		Tariffs    map[string]float64 `json:"tariffs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Algorithms, 3)
	assert.Contains(t, got.MeterTypes, "900VA")
	assert.Equal(t, 1352.0, got.Tariffs["900VA"])
}

func TestHealthEndpoints(t *testing.T) {
	checker := health.NewHealthChecker()
	var storeErr error
	checker.Register("store", func(context.Context) error { return storeErr })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ForecastQueueDepth.Set(3)

	r := gin.New()
	NewHealthController(checker, reg).RegisterRoutes(r)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/ready", "", "").Code)

	storeErr = errors.New("down")
	w := do(r, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)

	w = do(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wattara_forecast_queue_depth 3")
}
