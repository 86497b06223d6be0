package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mindbots/voicemesh/logging"
	"github.com/mindbots/voicemesh/rtc"
)

// JobProcess carries process-wide state shared by all jobs, typically
// populated once by a prewarm function (loaded VAD models, warmed HTTP
// clients). Safe for concurrent use.
type JobProcess struct {
	mu       sync.RWMutex
	userData any

	// StartedAt records when the process was prewarmed.
	StartedAt time.Time
}

// SetUserData stores the prewarmed payload for later retrieval by jobs.
func (p *JobProcess) SetUserData(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userData = v
}

// UserData returns the payload stored by the prewarm function, or nil.
func (p *JobProcess) UserData() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userData
}

// AgentDefaults carry persona tuning from configuration to the entrypoint
// building the agent.
type AgentDefaults struct {
	// ToolTimeout bounds individual tool executions during a reply.
	ToolTimeout time.Duration

	// MaxHistory caps the conversation history sent to the model.
	MaxHistory int
}

// shutdownCallback pairs a hook with a name used in shutdown logs.
type shutdownCallback struct {
	name string
	fn   func(ctx context.Context) error
}

// JobContext is the per-job handle passed to the entrypoint function. It
// exposes the room connection, the shared process state and the shutdown
// hook registry.
type JobContext struct {
	ctx    context.Context
	jobID  string
	proc   *JobProcess
	logger logging.Logger

	connectInfo   rtc.ConnectInfo
	agentDefaults AgentDefaults

	mu        sync.Mutex
	room      *rtc.Room
	callbacks []shutdownCallback

	shutdownOnce    sync.Once
	shutdownTimeout time.Duration
	done            chan struct{}
}

// Context returns the job context, cancelled when the job is stopped.
func (jc *JobContext) Context() context.Context { return jc.ctx }

// JobID returns the unique identifier of this job.
func (jc *JobContext) JobID() string { return jc.jobID }

// Proc returns the shared process state populated by the prewarm function.
func (jc *JobContext) Proc() *JobProcess { return jc.proc }

// Logger returns the job-scoped logger.
func (jc *JobContext) Logger() logging.Logger { return jc.logger }

// AgentDefaults returns the persona tuning values configured on the worker.
func (jc *JobContext) AgentDefaults() AgentDefaults { return jc.agentDefaults }

// Connect dials the room server and joins the job's room. The connection is
// retained and closed during Shutdown.
func (jc *JobContext) Connect(optFns ...func(o *rtc.Options)) (*rtc.Room, error) {
	jc.mu.Lock()
	if jc.room != nil {
		room := jc.room
		jc.mu.Unlock()
		return room, nil
	}
	jc.mu.Unlock()

	fns := append([]func(o *rtc.Options){func(o *rtc.Options) {
		o.Logger = jc.logger
	}}, optFns...)

	room, err := rtc.Connect(jc.ctx, jc.connectInfo, fns...)
	if err != nil {
		return nil, fmt.Errorf("connect job room: %w", err)
	}

	jc.mu.Lock()
	jc.room = room
	jc.mu.Unlock()

	return room, nil
}

// Room returns the connected room, or nil before Connect succeeds.
func (jc *JobContext) Room() *rtc.Room {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	return jc.room
}

// WaitForParticipant blocks until a remote participant is present in the
// room. Connect must have been called first.
func (jc *JobContext) WaitForParticipant() (rtc.Participant, error) {
	room := jc.Room()
	if room == nil {
		return rtc.Participant{}, fmt.Errorf("job %s: not connected to a room", jc.jobID)
	}
	return room.WaitForParticipant(jc.ctx)
}

// AddShutdownCallback registers a hook to run when the job shuts down.
// Callbacks run in registration order. Register transcript writers before
// usage reporters so the report reflects a completed export attempt.
func (jc *JobContext) AddShutdownCallback(name string, fn func(ctx context.Context) error) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.callbacks = append(jc.callbacks, shutdownCallback{name: name, fn: fn})
}

// Shutdown runs the registered callbacks and disconnects the room. It is
// idempotent: only the first call executes the callbacks, later calls return
// immediately. Every callback runs even when an earlier one fails or panics.
func (jc *JobContext) Shutdown(reason string) {
	jc.shutdownOnce.Do(func() {
		defer close(jc.done)

		jc.logger.Info("job shutting down", "job_id", jc.jobID, "reason", reason)

		jc.mu.Lock()
		callbacks := make([]shutdownCallback, len(jc.callbacks))
		copy(callbacks, jc.callbacks)
		room := jc.room
		jc.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), jc.shutdownTimeout)
		defer cancel()

		for _, cb := range callbacks {
			jc.runCallback(ctx, cb)
		}

		if room != nil {
			if err := room.Disconnect(); err != nil {
				jc.logger.Warn("room disconnect failed", "job_id", jc.jobID, "error", err)
			}
		}
	})
}

// Done is closed once Shutdown has finished running the callbacks.
func (jc *JobContext) Done() <-chan struct{} { return jc.done }

func (jc *JobContext) runCallback(ctx context.Context, cb shutdownCallback) {
	defer func() {
		if r := recover(); r != nil {
			jc.logger.Error("shutdown callback panicked", "job_id", jc.jobID, "callback", cb.name, "recover", r)
		}
	}()

	if err := cb.fn(ctx); err != nil {
		jc.logger.Error("shutdown callback failed", "job_id", jc.jobID, "callback", cb.name, "error", err)
		return
	}
	jc.logger.Debug("shutdown callback completed", "job_id", jc.jobID, "callback", cb.name)
}
