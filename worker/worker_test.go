package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJobContext() *JobContext {
	return &JobContext{
		ctx:             context.Background(),
		jobID:           "job-test",
		proc:            &JobProcess{},
		logger:          noopTestLogger{},
		shutdownTimeout: time.Second,
		done:            make(chan struct{}),
	}
}

type noopTestLogger struct{}

func (noopTestLogger) Debug(string, ...any) {}
func (noopTestLogger) Info(string, ...any)  {}
func (noopTestLogger) Warn(string, ...any)  {}
func (noopTestLogger) Error(string, ...any) {}

func TestShutdownRunsCallbacksInOrder(t *testing.T) {
	jc := newTestJobContext()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	jc.AddShutdownCallback("transcript", record("transcript"))
	jc.AddShutdownCallback("usage", record("usage"))
	jc.AddShutdownCallback("cleanup", record("cleanup"))

	jc.Shutdown("test")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"transcript", "usage", "cleanup"}, order)
}

func TestShutdownRunsExactlyOnce(t *testing.T) {
	jc := newTestJobContext()

	var calls int
	jc.AddShutdownCallback("counter", func(ctx context.Context) error {
		calls++
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jc.Shutdown("concurrent")
		}()
	}
	wg.Wait()
	jc.Shutdown("again")

	assert.Equal(t, 1, calls)

	select {
	case <-jc.Done():
	default:
		t.Fatal("Done channel not closed after shutdown")
	}
}

func TestShutdownCallbackFailuresAreIsolated(t *testing.T) {
	jc := newTestJobContext()

	var ran []string
	jc.AddShutdownCallback("failing", func(ctx context.Context) error {
		ran = append(ran, "failing")
		return errors.New("transcript write failed")
	})
	jc.AddShutdownCallback("panicking", func(ctx context.Context) error {
		ran = append(ran, "panicking")
		panic("boom")
	})
	jc.AddShutdownCallback("usage", func(ctx context.Context) error {
		ran = append(ran, "usage")
		return nil
	})

	jc.Shutdown("test")

	// Every callback must run even when earlier ones fail or panic.
	assert.Equal(t, []string{"failing", "panicking", "usage"}, ran)
}

func TestWorkerLaunchAndStop(t *testing.T) {
	started := make(chan *JobContext, 1)

	w := New(func(o *Options) {
		o.AgentName = "Mindbot"
		o.EntrypointFunc = func(jc *JobContext) error {
			started <- jc
			<-jc.Context().Done()
			return nil
		}
	})

	jobID, err := w.Launch(context.Background(), "room-1")
	require.NoError(t, err)

	var jc *JobContext
	select {
	case jc = <-started:
	case <-time.After(time.Second):
		t.Fatal("entrypoint did not start")
	}
	assert.Equal(t, jobID, jc.JobID())
	assert.Contains(t, w.ActiveJobs(), jobID)

	require.NoError(t, w.StopJob(jobID))

	select {
	case <-jc.Done():
	case <-time.After(time.Second):
		t.Fatal("job did not shut down after stop")
	}

	assert.Eventually(t, func() bool { return len(w.ActiveJobs()) == 0 }, time.Second, 10*time.Millisecond)
	assert.Error(t, w.StopJob(jobID))
}

func TestWorkerForwardsAgentDefaults(t *testing.T) {
	got := make(chan AgentDefaults, 1)

	w := New(func(o *Options) {
		o.AgentDefaults = AgentDefaults{ToolTimeout: 5 * time.Second, MaxHistory: 8}
		o.EntrypointFunc = func(jc *JobContext) error {
			got <- jc.AgentDefaults()
			return nil
		}
	})

	_, err := w.Launch(context.Background(), "room-1")
	require.NoError(t, err)

	select {
	case defaults := <-got:
		assert.Equal(t, 5*time.Second, defaults.ToolTimeout)
		assert.Equal(t, 8, defaults.MaxHistory)
	case <-time.After(time.Second):
		t.Fatal("entrypoint did not run")
	}
}

func TestWorkerPrewarmRunsOnce(t *testing.T) {
	var prewarms int

	w := New(func(o *Options) {
		o.PrewarmFunc = func(proc *JobProcess) error {
			prewarms++
			proc.SetUserData("warmed")
			return nil
		}
		o.EntrypointFunc = func(jc *JobContext) error {
			assert.Equal(t, "warmed", jc.Proc().UserData())
			return nil
		}
	})

	for i := 0; i < 3; i++ {
		_, err := w.Launch(context.Background(), fmt.Sprintf("room-%d", i))
		require.NoError(t, err)
	}
	w.wg.Wait()

	assert.Equal(t, 1, prewarms)
}

func TestWorkerPrewarmFailureBlocksLaunch(t *testing.T) {
	w := New(func(o *Options) {
		o.PrewarmFunc = func(proc *JobProcess) error {
			return errors.New("model download failed")
		}
		o.EntrypointFunc = func(jc *JobContext) error { return nil }
	})

	_, err := w.Launch(context.Background(), "room-1")
	assert.Error(t, err)
}

func TestWorkerEntrypointPanicStillRunsShutdown(t *testing.T) {
	done := make(chan struct{})

	w := New(func(o *Options) {
		o.EntrypointFunc = func(jc *JobContext) error {
			jc.AddShutdownCallback("observer", func(ctx context.Context) error {
				close(done)
				return nil
			})
			panic("entrypoint blew up")
		}
	})

	_, err := w.Launch(context.Background(), "room-1")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback did not run after entrypoint panic")
	}
}

func TestWorkerRunRequiresConfig(t *testing.T) {
	w := New(func(o *Options) {
		o.EntrypointFunc = func(jc *JobContext) error { return nil }
	})
	assert.Error(t, w.Run(context.Background()))

	w2 := New(func(o *Options) { o.RoomName = "room-1" })
	assert.Error(t, w2.Run(context.Background()))
}
