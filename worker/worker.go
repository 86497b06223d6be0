package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindbots/voicemesh/logging"
	"github.com/mindbots/voicemesh/rtc"
)

// EntrypointFunc is the job body. It receives a JobContext, runs the voice
// session and returns when the job is over. The worker calls Shutdown after
// it returns, so registered callbacks always run.
type EntrypointFunc func(jc *JobContext) error

// PrewarmFunc runs once per worker before the first job, typically to load
// models into the shared JobProcess.
type PrewarmFunc func(proc *JobProcess) error

// Options configure a Worker.
type Options struct {
	// EntrypointFunc is required; it is invoked once per launched job.
	EntrypointFunc EntrypointFunc

	// PrewarmFunc is optional; it runs once before the first job.
	PrewarmFunc PrewarmFunc

	// AgentName is the identity the agent joins rooms with.
	AgentName string

	// URL is the websocket endpoint of the room server.
	URL string

	// Token is the access token presented on join.
	Token string

	// RoomName is the room Run connects the default job to.
	RoomName string

	// SampleRate and Channels override the negotiated PCM format.
	SampleRate int
	Channels   int

	// ShutdownTimeout bounds the time shutdown callbacks get to finish.
	ShutdownTimeout time.Duration

	// AgentDefaults are persona tuning values surfaced to entrypoints via
	// JobContext.AgentDefaults, typically sourced from configuration.
	AgentDefaults AgentDefaults

	Logger logging.Logger
}

// Worker launches and tracks voice agent jobs. It prewarms shared process
// state once, runs each job in its own goroutine and supports cancelling
// individual jobs by ID.
type Worker struct {
	opts   Options
	logger logging.Logger
	proc   *JobProcess

	prewarmOnce sync.Once
	prewarmErr  error

	mu         sync.RWMutex
	activeJobs map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New creates a Worker. The entrypoint function must be set before Run or
// Launch is called.
func New(optFns ...func(o *Options)) *Worker {
	opts := Options{
		AgentName:       "voicemesh-agent",
		ShutdownTimeout: 30 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Worker{
		opts:       opts,
		logger:     opts.Logger,
		proc:       &JobProcess{},
		activeJobs: make(map[string]context.CancelFunc),
	}
}

// Proc returns the shared process state.
func (w *Worker) Proc() *JobProcess { return w.proc }

// Run prewarms the worker, launches a job for the configured room and blocks
// until the job finishes or the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.opts.RoomName == "" {
		return fmt.Errorf("worker: no room configured")
	}

	jobID, err := w.Launch(ctx, w.opts.RoomName)
	if err != nil {
		return err
	}

	w.logger.Info("worker running", "job_id", jobID, "room", w.opts.RoomName, "agent", w.opts.AgentName)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		w.StopAll()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Launch starts a job for the named room in its own goroutine and returns
// its ID. The job is tracked until its entrypoint returns and its shutdown
// callbacks have run.
func (w *Worker) Launch(ctx context.Context, roomName string) (string, error) {
	if w.opts.EntrypointFunc == nil {
		return "", fmt.Errorf("worker: entrypoint function is required")
	}

	if err := w.prewarm(); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(ctx)

	jc := &JobContext{
		ctx:    jobCtx,
		jobID:  jobID,
		proc:   w.proc,
		logger: w.logger,
		connectInfo: rtc.ConnectInfo{
			URL:        w.opts.URL,
			Token:      w.opts.Token,
			RoomName:   roomName,
			Identity:   w.opts.AgentName,
			SampleRate: w.opts.SampleRate,
			Channels:   w.opts.Channels,
		},
		agentDefaults:   w.opts.AgentDefaults,
		shutdownTimeout: w.opts.ShutdownTimeout,
		done:            make(chan struct{}),
	}

	w.mu.Lock()
	w.activeJobs[jobID] = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			cancel()
			w.mu.Lock()
			delete(w.activeJobs, jobID)
			w.mu.Unlock()
		}()

		w.logger.Info("job started", "job_id", jobID, "room", roomName)

		err := w.runEntrypoint(jc)

		reason := "entrypoint returned"
		if err != nil {
			reason = "entrypoint failed"
			w.logger.Error("job entrypoint failed", "job_id", jobID, "room", roomName, "error", err)
		}
		jc.Shutdown(reason)

		w.logger.Info("job finished", "job_id", jobID, "room", roomName)
	}()

	return jobID, nil
}

// StopJob cancels a running job by ID. The job's shutdown callbacks still
// run as part of its normal teardown.
func (w *Worker) StopJob(jobID string) error {
	w.mu.Lock()
	cancel, exists := w.activeJobs[jobID]
	w.mu.Unlock()

	if !exists {
		return fmt.Errorf("job %s not found", jobID)
	}

	cancel()
	return nil
}

// StopAll cancels every active job.
func (w *Worker) StopAll() {
	w.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(w.activeJobs))
	for _, cancel := range w.activeJobs {
		cancels = append(cancels, cancel)
	}
	w.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// ActiveJobs returns the IDs of currently running jobs.
func (w *Worker) ActiveJobs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]string, 0, len(w.activeJobs))
	for id := range w.activeJobs {
		ids = append(ids, id)
	}
	return ids
}

func (w *Worker) prewarm() error {
	w.prewarmOnce.Do(func() {
		w.proc.StartedAt = time.Now()
		if w.opts.PrewarmFunc == nil {
			return
		}
		w.logger.Info("worker prewarming", "agent", w.opts.AgentName)
		if err := w.opts.PrewarmFunc(w.proc); err != nil {
			w.prewarmErr = fmt.Errorf("prewarm failed: %w", err)
		}
	})
	return w.prewarmErr
}

func (w *Worker) runEntrypoint(jc *JobContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job entrypoint panicked: %v", r)
		}
	}()
	return w.opts.EntrypointFunc(jc)
}
