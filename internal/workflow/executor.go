// internal/workflow/executor.go
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/user/oraclegate/internal/bridge"
	"github.com/user/oraclegate/internal/types"
)

// Outcome is the product of one task execution. Delegated marks work routed
// to an external collaborator rather than finished locally.
type Outcome struct {
	Result    json.RawMessage
	Delegated bool
}

// Executor runs one task type. The agent is the task's assignee, nil when
// the task names none.
type Executor interface {
	Execute(ctx context.Context, task *types.WorkflowTask, agent *types.Agent) (*Outcome, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *types.WorkflowTask, agent *types.Agent) (*Outcome, error)

func (f ExecutorFunc) Execute(ctx context.Context, task *types.WorkflowTask, agent *types.Agent) (*Outcome, error) {
	return f(ctx, task, agent)
}

// Registry maps task types to executors. Resolution also consults the
// assigned agent's declared capabilities; unknown or unsupported
// combinations resolve to the default executor, which completes the task
// with an explanatory message instead of failing the workflow.
type Registry struct {
	mu       sync.RWMutex
	byType   map[string]Executor
	fallback Executor
}

func NewRegistry() *Registry {
	return &Registry{
		byType:   make(map[string]Executor),
		fallback: defaultExecutor(),
	}
}

// Register binds an executor to a task type.
func (r *Registry) Register(taskType string, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[taskType] = ex
}

// Resolve selects the executor for (taskType, agent capabilities).
func (r *Registry) Resolve(taskType string, agent *types.Agent) Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.byType[taskType]
	if !ok {
		return r.fallback
	}
	if agent != nil && !agent.HasCapability(taskType) {
		return r.fallback
	}
	return ex
}

func defaultExecutor() Executor {
	return ExecutorFunc(func(_ context.Context, task *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		msg, err := json.Marshal(map[string]string{
			"message": fmt.Sprintf("no executor for task type %q; completed without effect", task.Type),
		})
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: msg}, nil
	})
}

// ToolRunner is the slice of the execution bridge the workflow layer needs.
type ToolRunner interface {
	Execute(ctx context.Context, cmd bridge.Command, args map[string]any) (json.RawMessage, error)
}

// NewToolExecutor delegates a task type to an external tool process via the
// bridge. Tasks it runs are marked delegated.
func NewToolExecutor(runner ToolRunner, cmd bridge.Command) Executor {
	return ExecutorFunc(func(ctx context.Context, task *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		result, err := runner.Execute(ctx, cmd, task.Params)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: result, Delegated: true}, nil
	})
}

// NewSimulatedExecutor completes a task locally with a computed payload.
// Business logic stays outside the gateway; these stand in for internal
// steps like validation or aggregation.
func NewSimulatedExecutor(build func(task *types.WorkflowTask) map[string]any) Executor {
	return ExecutorFunc(func(_ context.Context, task *types.WorkflowTask, _ *types.Agent) (*Outcome, error) {
		payload, err := json.Marshal(build(task))
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: payload}, nil
	})
}
