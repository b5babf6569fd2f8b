package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockPlugin records lifecycle calls.
type MockPlugin struct {
	mock.Mock
	name string
}

func (m *MockPlugin) Descriptor() Descriptor { return Descriptor{Name: m.name} }

func (m *MockPlugin) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPlugin) Execute(ctx context.Context, in Input) (Output, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(Output), args.Error(1)
}

func (m *MockPlugin) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestExecutor_Success(t *testing.T) {
	p := &MockPlugin{name: "mock"}
	in := Input{Text: "hi", SessionID: "s1"}
	p.On("Initialize", mock.Anything).Return(nil).Once()
	p.On("Execute", mock.Anything, in).Return(Output{Text: "ok"}, nil).Once()
	p.On("Shutdown", mock.Anything).Return(nil).Once()

	e := NewExecutor(NewRegistry(p))
	res := e.Execute(context.Background(), "mock", in)
	e.Wait()

	require.True(t, res.OK())
	assert.Equal(t, "ok", res.Output.Text)
	assert.Equal(t, "mock", res.Plugin)
	assert.NoError(t, res.Err)
	p.AssertExpectations(t)
}

func TestExecutor_NotFound(t *testing.T) {
	e := NewExecutor(NewRegistry())
	res := e.Execute(context.Background(), "nope", Input{Text: "x"})

	assert.Equal(t, StatusNotFound, res.Status)
	assert.ErrorIs(t, res.Err, core.ErrCapabilityNotFound)
}

func TestExecutor_InitFailedSkipsExecute(t *testing.T) {
	p := &MockPlugin{name: "broken"}
	p.On("Initialize", mock.Anything).Return(errors.New("no binary")).Once()
	p.On("Shutdown", mock.Anything).Return(nil).Once()

	e := NewExecutor(NewRegistry(p))
	res := e.Execute(context.Background(), "broken", Input{Text: "x"})
	e.Wait()

	assert.Equal(t, StatusInitFailed, res.Status)
	assert.ErrorIs(t, res.Err, core.ErrCapabilityInitFailed)
	p.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	p.AssertExpectations(t)
}

func TestExecutor_ExecFailedStillShutsDown(t *testing.T) {
	cause := errors.New("exit status 1")
	p := &MockPlugin{name: "failing"}
	p.On("Initialize", mock.Anything).Return(nil)
	p.On("Execute", mock.Anything, mock.Anything).Return(Output{}, cause)
	p.On("Shutdown", mock.Anything).Return(errors.New("cleanup failed"))

	e := NewExecutor(NewRegistry(p))
	res := e.Execute(context.Background(), "failing", Input{Text: "x"})
	e.Wait()

	assert.Equal(t, StatusExecFailed, res.Status)
	assert.ErrorIs(t, res.Err, cause)
	p.AssertCalled(t, "Shutdown", mock.Anything)
}

func TestExecutor_PanicRecovered(t *testing.T) {
	var shutdown atomic.Bool
	p := NewFunc(Descriptor{Name: "panicky"}, func(context.Context, Input) (Output, error) {
		panic("boom")
	}, func(o *FuncOptions) {
		o.OnShutdown = func(context.Context) error { shutdown.Store(true); return nil }
	})

	e := NewExecutor(NewRegistry(p))
	res := e.Execute(context.Background(), "panicky", Input{})
	e.Wait()

	assert.Equal(t, StatusExecFailed, res.Status)
	assert.ErrorContains(t, res.Err, "panic: boom")
	assert.True(t, shutdown.Load())
}

func TestExecutor_Timeout(t *testing.T) {
	release := make(chan struct{})
	var shutdown atomic.Bool
	p := NewFunc(Descriptor{Name: "slow"}, func(ctx context.Context, _ Input) (Output, error) {
		<-release
		return Output{Text: "late"}, nil
	}, func(o *FuncOptions) {
		o.OnShutdown = func(ctx context.Context) error {
			// Shutdown runs detached from the expired invocation context.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			shutdown.Store(true)
			return nil
		}
	})

	e := NewExecutor(NewRegistry(p), func(o *ExecutorOptions) { o.Timeout = 30 * time.Millisecond })

	start := time.Now()
	res := e.Execute(context.Background(), "slow", Input{})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusTimeout, res.Status)
	assert.ErrorIs(t, res.Err, core.ErrCapabilityTimeout)

	close(release)
	e.Wait()
	assert.True(t, shutdown.Load())
}

func TestExecutor_CallerDeadline(t *testing.T) {
	p := NewFunc(Descriptor{Name: "waits"}, func(ctx context.Context, _ Input) (Output, error) {
		<-ctx.Done()
		return Output{}, ctx.Err()
	})
	e := NewExecutor(NewRegistry(p))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := e.Execute(ctx, "waits", Input{})
	e.Wait()

	assert.Equal(t, StatusTimeout, res.Status)
}

func TestExecutor_SerializesInstance(t *testing.T) {
	var active, peak atomic.Int32
	p := NewFunc(Descriptor{Name: "counter"}, func(context.Context, Input) (Output, error) {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return Output{Text: "done"}, nil
	})
	e := NewExecutor(NewRegistry(p))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := e.Execute(context.Background(), "counter", Input{})
			assert.True(t, res.OK())
		}()
	}
	wg.Wait()
	e.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestExecutor_WaitingForBusyInstanceTimesOut(t *testing.T) {
	release := make(chan struct{})
	p := NewFunc(Descriptor{Name: "busy"}, func(context.Context, Input) (Output, error) {
		<-release
		return Output{}, nil
	})
	e := NewExecutor(NewRegistry(p), func(o *ExecutorOptions) { o.Timeout = 0 })

	go e.Execute(context.Background(), "busy", Input{})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := e.Execute(ctx, "busy", Input{})
	assert.Equal(t, StatusTimeout, res.Status)
	assert.ErrorContains(t, res.Err, "waiting for instance")

	close(release)
	e.Wait()
}

func TestExecutor_RecordsExecutions(t *testing.T) {
	log := memory.NewInMemoryDurableStore()
	e := NewExecutor(NewRegistry(echoFunc("echo")), func(o *ExecutorOptions) {
		o.Recorder = log
		o.MaxRecordedOutput = 4
	})

	e.Execute(context.Background(), "echo", Input{Text: "hello world", SessionID: "s1"})
	e.Execute(context.Background(), "nope", Input{Text: "x", SessionID: "s1"})
	e.Wait()

	recs, err := log.Executions(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "nope", recs[0].Plugin)
	assert.Equal(t, string(StatusNotFound), recs[0].Status)
	assert.Equal(t, "echo", recs[1].Plugin)
	assert.Equal(t, "hell", recs[1].Output)
	assert.Equal(t, "hello world", recs[1].Input)
}
