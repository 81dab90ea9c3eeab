package forecast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Logger"
	metrics "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Metrics"
	wtrmodels "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models"
)

var (
	ErrQueueFull   = errors.New("forecast queue is full")
	ErrJobNotFound = errors.New("forecast job not found")
	ErrPoolStopped = errors.New("forecast pool is stopped")
)

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a snapshot of one submitted forecast.
type Job struct {
	ID         string                    `json:"job_id"`
	Status     JobStatus                 `json:"status"`
	DeviceID   string                    `json:"device_id"`
	Algorithm  string                    `json:"algo"`
	Result     *wtrmodels.ForecastResult `json:"result,omitempty"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`

	// Err keeps the typed failure for callers that classify it.
	Err         error  `json:"-"`
	SubmittedBy string `json:"-"`
}

type job struct {
	Job
	req  Request
	done chan struct{}
}

// Pool runs forecasts on a fixed number of workers behind a bounded queue,
// away from request-handling goroutines. Finished jobs are kept for ttl so
// their results can be polled.
type Pool struct {
	runner  Runner
	workers int
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	queue chan *job
	mu    sync.Mutex
	jobs  map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(runner Runner, workers, queueSize int, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *Pool {
	return &Pool{
		runner:  runner,
		workers: workers,
		ttl:     ttl,
		logger:  log.WithComponent("forecast-pool"),
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
		queue:   make(chan *job, queueSize),
		jobs:    make(map[string]*job),
	}
}

// Start launches the workers and the expiry sweep. Running forecasts are
// not interrupted by ctx; Stop waits for them.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work()
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sweep()
	}()
	p.logger.Logger.Info().Int("workers", p.workers).Int("queue_size", cap(p.queue)).Msg("forecast pool started")
}

func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("forecast pool stopped")
}

// Submit queues req and returns the job id, or ErrQueueFull.
func (p *Pool) Submit(req Request) (string, error) {
	if p.ctx == nil || p.ctx.Err() != nil {
		return "", ErrPoolStopped
	}

	j := &job{
		Job: Job{
			ID:          p.newID(),
			Status:      JobQueued,
			DeviceID:    req.DeviceID,
			Algorithm:   req.Algorithm,
			CreatedAt:   p.now().UTC(),
			SubmittedBy: req.Principal.UserID,
		},
		req:  req,
		done: make(chan struct{}),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.queue <- j:
	default:
		return "", ErrQueueFull
	}
	p.jobs[j.ID] = j
	p.metrics.ForecastQueueDepth.Set(float64(len(p.queue)))
	return j.ID, nil
}

// Get returns a snapshot of job id.
func (p *Pool) Get(id string) (Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[id]
	if !ok || p.expired(j) {
		return Job{}, ErrJobNotFound
	}
	return j.Job, nil
}

// Wait blocks until job id finishes or ctx ends.
func (p *Pool) Wait(ctx context.Context, id string) (Job, error) {
	p.mu.Lock()
	j, ok := p.jobs[id]
	p.mu.Unlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}

	select {
	case <-j.done:
		return p.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Forecast submits req and waits for its result, so synchronous callers
// share the same workers as polled jobs.
func (p *Pool) Forecast(ctx context.Context, req Request) (*wtrmodels.ForecastResult, error) {
	id, err := p.Submit(req)
	if err != nil {
		return nil, err
	}
	j, err := p.Wait(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Err != nil {
		return nil, j.Err
	}
	return j.Result, nil
}

func (p *Pool) work() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.queue:
			p.run(j)
		}
	}
}

func (p *Pool) run(j *job) {
	p.mu.Lock()
	j.Status = JobRunning
	p.metrics.ForecastQueueDepth.Set(float64(len(p.queue)))
	p.mu.Unlock()

	// detached so shutdown does not abort a half-trained model
	result, err := p.runner.Forecast(context.WithoutCancel(p.ctx), j.req)

	p.mu.Lock()
	finished := p.now().UTC()
	j.FinishedAt = &finished
	if err != nil {
		j.Status = JobFailed
		j.Err = err
		j.Error = err.Error()
	} else {
		j.Status = JobDone
		j.Result = result
	}
	p.mu.Unlock()
	close(j.done)
}

func (p *Pool) expired(j *job) bool {
	return j.FinishedAt != nil && p.now().Sub(*j.FinishedAt) > p.ttl
}

func (p *Pool) sweep() {
	interval := p.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.prune()
		}
	}
}

func (p *Pool) prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, j := range p.jobs {
		if p.expired(j) {
			delete(p.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		p.logger.Logger.Debug().Int("removed", removed).Msg("expired forecast jobs pruned")
	}
	return removed
}
