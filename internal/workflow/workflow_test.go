package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/oraclegate/internal/state"
	"github.com/user/oraclegate/internal/types"
)

func okExecutor() Executor {
	return ExecutorFunc(func(_ context.Context, task *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		return &Outcome{Result: json.RawMessage(`{"ok":true}`)}, nil
	})
}

func failExecutor() Executor {
	return ExecutorFunc(func(_ context.Context, _ *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		return nil, errors.New("executor blew up")
	})
}

func newService(reg *Registry) *Service {
	return NewService(reg, nil, state.NewTelemetry())
}

func TestCreateRejectsCycle(t *testing.T) {
	svc := newService(NewRegistry())

	_, err := svc.Create(context.Background(), "cyclic", "init", []TaskSpec{
		{Type: "a", DependsOn: []int{1}},
		{Type: "b", DependsOn: []int{0}},
	})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestCreateRejectsBadDependency(t *testing.T) {
	svc := newService(NewRegistry())

	_, err := svc.Create(context.Background(), "bad", "init", []TaskSpec{
		{Type: "a", DependsOn: []int{7}},
	})
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	_, err = svc.Create(context.Background(), "self", "init", []TaskSpec{
		{Type: "a", DependsOn: []int{0}},
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), "empty", "init", nil)
	require.Error(t, err)
}

func TestExecuteDependencyOrdering(t *testing.T) {
	// A and C are independent, B depends on A. A and C must overlap;
	// B must start only after A completed.
	reg := NewRegistry()

	aStarted := make(chan struct{})
	cStarted := make(chan struct{})
	var order []string
	var mu sync.Mutex
	logType := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	reg.Register("a", ExecutorFunc(func(_ context.Context, _ *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		close(aStarted)
		select {
		case <-cStarted:
		case <-time.After(2 * time.Second):
			return nil, errors.New("c never started concurrently")
		}
		logType("a")
		return &Outcome{Result: json.RawMessage(`{}`)}, nil
	}))
	reg.Register("c", ExecutorFunc(func(_ context.Context, _ *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		close(cStarted)
		select {
		case <-aStarted:
		case <-time.After(2 * time.Second):
			return nil, errors.New("a never started concurrently")
		}
		logType("c")
		return &Outcome{Result: json.RawMessage(`{}`)}, nil
	}))
	reg.Register("b", ExecutorFunc(func(_ context.Context, _ *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		logType("b")
		return &Outcome{Result: json.RawMessage(`{}`)}, nil
	}))

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "abc", "init", []TaskSpec{
		{Type: "a"},
		{Type: "b", DependsOn: []int{0}},
		{Type: "c"},
	})
	require.NoError(t, err)

	done, err := svc.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, types.WorkflowCompleted, done.Status)
	assert.Equal(t, 3, done.Metadata.CompletedTasks)
	require.Len(t, order, 3)
	assert.Equal(t, "b", order[2], "dependent task must run last")
}

func TestExecuteFailureBlocksDependents(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", failExecutor())
	reg.Register("b", okExecutor())
	reg.Register("c", okExecutor())

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "abc", "init", []TaskSpec{
		{Type: "a"},
		{Type: "b", DependsOn: []int{0}},
		{Type: "c"},
	})
	require.NoError(t, err)

	done, err := svc.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, types.WorkflowFailed, done.Status)
	assert.Equal(t, 1, done.Metadata.FailedTasks)

	// B never left pending; C ran independently of A's failure.
	assert.Equal(t, types.TaskFailed, done.Tasks[0].Status)
	assert.Equal(t, types.TaskPending, done.Tasks[1].Status)
	assert.Equal(t, types.TaskCompleted, done.Tasks[2].Status)

	stuck, err := svc.Stuck(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.TaskID{done.Tasks[1].ID}, stuck)
}

func TestExecuteDependentsByPriority(t *testing.T) {
	reg := NewRegistry()
	var order []string
	var mu sync.Mutex
	recorder := func() Executor {
		return ExecutorFunc(func(_ context.Context, task *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
			mu.Lock()
			order = append(order, task.Description)
			mu.Unlock()
			return &Outcome{Result: json.RawMessage(`{}`)}, nil
		})
	}
	reg.Register("root", okExecutor())
	reg.Register("dep", recorder())

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "prio", "init", []TaskSpec{
		{Type: "root"},
		{Type: "dep", Description: "low", Priority: 1, DependsOn: []int{0}},
		{Type: "dep", Description: "high", Priority: 9, DependsOn: []int{0}},
		{Type: "dep", Description: "mid", Priority: 5, DependsOn: []int{0}},
	})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestExecuteChainedLayers(t *testing.T) {
	reg := NewRegistry()
	var order []string
	var mu sync.Mutex
	reg.Register("step", ExecutorFunc(func(_ context.Context, task *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		mu.Lock()
		order = append(order, task.Description)
		mu.Unlock()
		return &Outcome{Result: json.RawMessage(`{}`)}, nil
	}))

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "chain", "init", []TaskSpec{
		{Type: "step", Description: "first"},
		{Type: "step", Description: "second", DependsOn: []int{0}},
		{Type: "step", Description: "third", DependsOn: []int{1}},
	})
	require.NoError(t, err)

	done, err := svc.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCompleted, done.Status)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRegistryFallback(t *testing.T) {
	reg := NewRegistry()
	reg.Register("known", okExecutor())

	// Unknown type resolves to the default executor and completes.
	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "f", "init", []TaskSpec{
		{Type: "mystery"},
	})
	require.NoError(t, err)

	done, err := svc.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCompleted, done.Status)
	assert.Contains(t, string(done.Tasks[0].Result), "no executor")
}

func TestRegistryRespectsCapabilities(t *testing.T) {
	reg := NewRegistry()
	reg.Register("price_lookup", okExecutor())

	capable := &types.Agent{ID: "a", Capabilities: []string{"price_lookup"}}
	incapable := &types.Agent{ID: "b", Capabilities: []string{"ledger_submit"}}
	task := &types.WorkflowTask{Type: "price_lookup"}

	out, err := reg.Resolve("price_lookup", capable).Execute(context.Background(), task, capable)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out.Result))

	// An agent without the capability gets the fallback executor.
	out, err = reg.Resolve("price_lookup", incapable).Execute(context.Background(), task, incapable)
	require.NoError(t, err)
	assert.Contains(t, string(out.Result), "no executor")

	// No assigned agent means no capability gate.
	out, err = reg.Resolve("price_lookup", nil).Execute(context.Background(), task, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out.Result))
}

func TestPauseAdvisory(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", okExecutor())
	svc := newService(reg)

	wf, err := svc.Create(context.Background(), "p", "init", []TaskSpec{{Type: "a"}})
	require.NoError(t, err)
	require.NoError(t, svc.Pause(context.Background(), wf.ID))

	_, err = svc.Execute(context.Background(), wf.ID, nil)
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	// Pausing twice is rejected, as is pausing a finished workflow.
	require.Error(t, svc.Pause(context.Background(), wf.ID))
}

func TestExecuteReportsProgress(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", okExecutor())
	svc := newService(reg)

	wf, err := svc.Create(context.Background(), "prog", "init", []TaskSpec{{Type: "a"}})
	require.NoError(t, err)

	var statuses []types.TaskStatus
	_, err = svc.Execute(context.Background(), wf.ID, func(task *types.WorkflowTask) {
		statuses = append(statuses, task.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, []types.TaskStatus{types.TaskInProgress, types.TaskCompleted}, statuses)
}

func TestToolExecutorDelegates(t *testing.T) {
	runner := &stubRunner{result: json.RawMessage(`{"price":1}`)}
	reg := NewRegistry()
	reg.Register("price_lookup", NewToolExecutor(runner, stubCommand()))

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "d", "init", []TaskSpec{
		{Type: "price_lookup", Params: map[string]any{"symbol": "BTC"}},
	})
	require.NoError(t, err)

	done, err := svc.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCompleted, done.Status)
	assert.Equal(t, types.TaskDelegated, done.Tasks[0].Status)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, "BTC", runner.lastArgs["symbol"])
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", okExecutor())
	svc := newService(reg)

	wf, err := svc.Create(context.Background(), "iso", "init", []TaskSpec{{Type: "a"}})
	require.NoError(t, err)

	// Mutating a returned workflow must not touch the stored one.
	wf.Status = types.WorkflowFailed
	wf.Tasks[0].Status = types.TaskFailed
	wf.Tasks[0].Params = map[string]any{"tampered": true}

	fresh, err := svc.Get(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowActive, fresh.Status)
	assert.Equal(t, types.TaskPending, fresh.Tasks[0].Status)
	assert.Nil(t, fresh.Tasks[0].Params)
}

func TestConcurrentExecuteRejected(t *testing.T) {
	reg := NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	reg.Register("slow", ExecutorFunc(func(_ context.Context, _ *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return &Outcome{Result: json.RawMessage(`{}`)}, nil
	}))

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "once", "init", []TaskSpec{{Type: "slow"}})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Execute(context.Background(), wf.ID, nil)
		errCh <- err
	}()
	<-started

	// The workflow is mid-execution: a second Execute must be rejected
	// instead of claiming the same pending tasks.
	_, err = svc.Execute(context.Background(), wf.ID, nil)
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
	assert.Contains(t, err.Error(), "already executing")

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetSafeDuringExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register("step", ExecutorFunc(func(_ context.Context, _ *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		time.Sleep(time.Millisecond)
		return &Outcome{Result: json.RawMessage(`{}`)}, nil
	}))

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "live", "init", []TaskSpec{
		{Type: "step"},
		{Type: "step", DependsOn: []int{0}},
		{Type: "step", DependsOn: []int{1}},
	})
	require.NoError(t, err)

	// Readers marshaling Get snapshots must never observe writes from the
	// executing goroutine. Run under -race to verify.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap, err := svc.Get(context.Background(), wf.ID)
			if !assert.NoError(t, err) {
				return
			}
			_, err = json.Marshal(snap)
			assert.NoError(t, err)
		}
	}()

	done, err := svc.Execute(context.Background(), wf.ID, nil)
	close(stop)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCompleted, done.Status)
}

func TestDelegatedSatisfiesDependencies(t *testing.T) {
	// A fan-in task whose dependencies ran through the tool bridge must
	// still unblock: delegated is terminal success, not a dead end.
	runner := &stubRunner{result: json.RawMessage(`{"price":1}`)}
	reg := NewRegistry()
	reg.Register("price_lookup", NewToolExecutor(runner, stubCommand()))
	reg.Register("market_analysis", okExecutor())

	svc := newService(reg)
	wf, err := svc.Create(context.Background(), "fanin", "init", []TaskSpec{
		{Type: "price_lookup", Params: map[string]any{"symbol": "BTC"}},
		{Type: "market_analysis", DependsOn: []int{0}},
	})
	require.NoError(t, err)

	done, err := svc.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.WorkflowCompleted, done.Status)
	assert.Equal(t, types.TaskDelegated, done.Tasks[0].Status)
	assert.Equal(t, types.TaskCompleted, done.Tasks[1].Status)
	assert.Equal(t, 2, done.Metadata.CompletedTasks)

	stuck, err := svc.Stuck(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

func TestTemplatesExpand(t *testing.T) {
	specs, err := Expand("price_feed", "oracle-agent", map[string]any{"symbol": "BTC"})
	require.NoError(t, err)
	require.Len(t, specs, 4)
	assert.Equal(t, "oracle_feed", specs[3].Type)
	assert.Equal(t, []int{2}, specs[3].DependsOn)

	_, err = Expand("nope", "a", nil)
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))

	assert.ElementsMatch(t, []string{"price_feed", "market_analysis"}, TemplateNames())
}
