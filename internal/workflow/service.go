// internal/workflow/service.go
package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/oraclegate/internal/types"
)

// ProgressFunc receives a task snapshot each time a task changes status
// during execution. May be nil.
type ProgressFunc func(task *types.WorkflowTask)

// TaskSpec describes one task at workflow creation time. DependsOn holds
// indices into the spec slice.
type TaskSpec struct {
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	AgentID     types.AgentID  `json:"agent_id,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Priority    int            `json:"priority"`
	DependsOn   []int          `json:"depends_on,omitempty"`
}

// Service owns workflows and schedules their tasks: independent tasks run
// concurrently, dependents run once their dependencies complete, in
// descending priority order.
type Service struct {
	mu        sync.RWMutex
	workflows map[types.WorkflowID]*types.Workflow
	running   map[types.WorkflowID]bool
	registry  *Registry
	agents    types.AgentStore
	telemetry types.TelemetryStore
	now       func() time.Time
}

func NewService(registry *Registry, agents types.AgentStore, telemetry types.TelemetryStore) *Service {
	return &Service{
		workflows: make(map[types.WorkflowID]*types.Workflow),
		running:   make(map[types.WorkflowID]bool),
		registry:  registry,
		agents:    agents,
		telemetry: telemetry,
		now:       time.Now,
	}
}

// Create validates the task graph and stores a new active workflow.
// Graphs with a dependency cycle or an out-of-range dependency are rejected
// outright: a cycle would otherwise leave tasks pending forever.
func (s *Service) Create(ctx context.Context, name string, initiator types.AgentID, specs []TaskSpec) (*types.Workflow, error) {
	if len(specs) == 0 {
		return nil, types.E(types.KindValidation, "workflow has no tasks")
	}
	if err := checkGraph(specs); err != nil {
		return nil, err
	}

	now := s.now()
	tasks := make([]*types.WorkflowTask, len(specs))
	for i, spec := range specs {
		tasks[i] = &types.WorkflowTask{
			ID:          types.NewTaskID(),
			Type:        spec.Type,
			Description: spec.Description,
			AgentID:     spec.AgentID,
			Params:      spec.Params,
			Priority:    spec.Priority,
			Status:      types.TaskPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	for i, spec := range specs {
		for _, dep := range spec.DependsOn {
			tasks[i].Dependencies = append(tasks[i].Dependencies, tasks[dep].ID)
		}
	}

	wf := &types.Workflow{
		ID:        types.NewWorkflowID(),
		Name:      name,
		Initiator: initiator,
		Tasks:     tasks,
		Status:    types.WorkflowActive,
		Metadata:  types.WorkflowMetadata{TaskCount: len(tasks)},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.workflows[wf.ID] = wf
	out := wf.Clone()
	s.mu.Unlock()

	s.record(ctx, "workflow_created", initiator, map[string]any{
		"workflow_id": wf.ID,
		"name":        name,
		"task_count":  len(tasks),
	})
	return out, nil
}

// checkGraph rejects out-of-range dependencies and cycles (Kahn's
// algorithm over the spec indices).
func checkGraph(specs []TaskSpec) error {
	n := len(specs)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, spec := range specs {
		for _, dep := range spec.DependsOn {
			if dep < 0 || dep >= n {
				return types.E(types.KindValidation, "task %d depends on unknown task %d", i, dep)
			}
			if dep == i {
				return types.E(types.KindValidation, "task %d depends on itself", i)
			}
			indegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	queue := make([]int, 0, n)
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		visited++
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if visited != n {
		return types.E(types.KindValidation, "dependency cycle detected")
	}
	return nil
}

// Get returns a point-in-time snapshot of the workflow. Callers may read or
// marshal it freely while execution continues on the stored copy.
func (s *Service) Get(_ context.Context, id types.WorkflowID) (*types.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, types.E(types.KindNotFound, "workflow %s not found", id)
	}
	return wf.Clone(), nil
}

// Pause is an advisory transition: it does not abort in-flight tasks.
func (s *Service) Pause(ctx context.Context, id types.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return types.E(types.KindNotFound, "workflow %s not found", id)
	}
	if wf.Status != types.WorkflowActive {
		return types.E(types.KindValidation, "workflow %s is %s, not active", id, wf.Status)
	}
	wf.Status = types.WorkflowPaused
	wf.UpdatedAt = s.now()
	return nil
}

// Execute runs the workflow to quiescence. Ready tasks (no dependencies)
// run concurrently; one failure does not cancel siblings. Dependent tasks
// then run sequentially in descending priority order once all their
// dependencies have completed, preserving deterministic ordering on ties.
// A workflow has at most one Execute in flight; concurrent calls are
// rejected so two schedulers never claim the same pending task.
func (s *Service) Execute(ctx context.Context, id types.WorkflowID, onProgress ProgressFunc) (*types.Workflow, error) {
	s.mu.Lock()
	wf, ok := s.workflows[id]
	if !ok {
		s.mu.Unlock()
		return nil, types.E(types.KindNotFound, "workflow %s not found", id)
	}
	if wf.Status != types.WorkflowActive {
		s.mu.Unlock()
		return nil, types.E(types.KindValidation, "workflow %s is %s, not active", id, wf.Status)
	}
	if s.running[id] {
		s.mu.Unlock()
		return nil, types.E(types.KindValidation, "workflow %s is already executing", id)
	}
	s.running[id] = true
	var ready, blocked []*types.WorkflowTask
	for _, task := range wf.Tasks {
		if task.Status != types.TaskPending {
			continue
		}
		if len(task.Dependencies) == 0 {
			ready = append(ready, task)
		} else {
			blocked = append(blocked, task)
		}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	// Phase 1: independent tasks, concurrently.
	var g errgroup.Group
	for _, task := range ready {
		task := task
		g.Go(func() error {
			s.runTask(ctx, wf, task, onProgress)
			return nil
		})
	}
	_ = g.Wait()

	// Phase 2: unblock dependents layer by layer while nothing has failed.
	if s.failedCount(wf) == 0 {
		for {
			next := s.unblocked(wf, blocked)
			if len(next) == 0 {
				break
			}
			sort.SliceStable(next, func(i, j int) bool {
				return next[i].Priority > next[j].Priority
			})
			for _, task := range next {
				s.runTask(ctx, wf, task, onProgress)
			}
		}
	}

	s.finalize(ctx, wf)

	s.mu.RLock()
	out := wf.Clone()
	s.mu.RUnlock()
	return out, nil
}

// unblocked returns still-pending tasks whose dependencies all reached a
// terminal success state. Delegated counts: the tool ran and its result is
// recorded, so dependents have their input.
func (s *Service) unblocked(wf *types.Workflow, blocked []*types.WorkflowTask) []*types.WorkflowTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.WorkflowTask
	for _, task := range blocked {
		if task.Status != types.TaskPending {
			continue
		}
		satisfied := true
		for _, dep := range task.Dependencies {
			d := wf.Task(dep)
			if d == nil || (d.Status != types.TaskCompleted && d.Status != types.TaskDelegated) {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, task)
		}
	}
	return out
}

func (s *Service) runTask(ctx context.Context, wf *types.Workflow, task *types.WorkflowTask, onProgress ProgressFunc) {
	agent := s.taskAgent(ctx, task)
	s.setTaskStatus(wf, task, types.TaskInProgress, nil, "", onProgress)

	ex := s.registry.Resolve(task.Type, agent)
	outcome, err := ex.Execute(ctx, task, agent)
	if err != nil {
		s.setTaskStatus(wf, task, types.TaskFailed, nil, types.PublicMessage(err), onProgress)
		s.record(ctx, "error", task.AgentID, map[string]any{
			"workflow_id": wf.ID,
			"task_id":     task.ID,
			"task_type":   task.Type,
			"error":       types.PublicMessage(err),
		})
		return
	}

	status := types.TaskCompleted
	eventType := "workflow_task_completed"
	if outcome.Delegated {
		status = types.TaskDelegated
		eventType = "workflow_task_delegated"
	}
	s.setTaskStatus(wf, task, status, outcome.Result, "", onProgress)
	s.record(ctx, eventType, task.AgentID, map[string]any{
		"workflow_id": wf.ID,
		"task_id":     task.ID,
		"task_type":   task.Type,
	})
}

// taskAgent resolves the task's assignee, nil when unset or unknown.
func (s *Service) taskAgent(ctx context.Context, task *types.WorkflowTask) *types.Agent {
	if task.AgentID == "" || s.agents == nil {
		return nil
	}
	agent, err := s.agents.Get(ctx, task.AgentID)
	if err != nil {
		return nil
	}
	return agent
}

func (s *Service) setTaskStatus(wf *types.Workflow, task *types.WorkflowTask, status types.TaskStatus, result []byte, errMsg string, onProgress ProgressFunc) {
	s.mu.Lock()
	task.Status = status
	task.Result = result
	task.Error = errMsg
	task.UpdatedAt = s.now()
	wf.UpdatedAt = task.UpdatedAt
	snapshot := task.Clone()
	s.mu.Unlock()

	if onProgress != nil {
		onProgress(snapshot)
	}
}

func (s *Service) failedCount(wf *types.Workflow) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, task := range wf.Tasks {
		if task.Status == types.TaskFailed {
			n++
		}
	}
	return n
}

// finalize settles the workflow status and counters. Tasks that never
// unblocked stay pending and are surfaced as a stuck-workflow diagnostic.
func (s *Service) finalize(ctx context.Context, wf *types.Workflow) {
	s.mu.Lock()
	var completed, failed, pending int
	var stuck []types.TaskID
	for _, task := range wf.Tasks {
		switch task.Status {
		case types.TaskCompleted, types.TaskDelegated:
			completed++
		case types.TaskFailed:
			failed++
		case types.TaskPending:
			pending++
			stuck = append(stuck, task.ID)
		}
	}
	wf.Metadata.CompletedTasks = completed
	wf.Metadata.FailedTasks = failed
	switch {
	case failed > 0:
		wf.Status = types.WorkflowFailed
	case pending == 0:
		wf.Status = types.WorkflowCompleted
	}
	wf.UpdatedAt = s.now()
	status := wf.Status
	s.mu.Unlock()

	if len(stuck) > 0 {
		slog.Warn("workflow has stuck tasks",
			"workflow_id", wf.ID, "status", status, "stuck_tasks", len(stuck))
	}
	s.record(ctx, "workflow_finished", wf.Initiator, map[string]any{
		"workflow_id": wf.ID,
		"status":      status,
		"completed":   completed,
		"failed":      failed,
		"stuck":       len(stuck),
	})
}

// Stuck returns the ids of tasks that can no longer make progress.
func (s *Service) Stuck(_ context.Context, id types.WorkflowID) ([]types.TaskID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, types.E(types.KindNotFound, "workflow %s not found", id)
	}
	var stuck []types.TaskID
	for _, task := range wf.Tasks {
		if task.Status == types.TaskPending {
			stuck = append(stuck, task.ID)
		}
	}
	return stuck, nil
}

// StatusCounts reports workflows per status, for metrics.
func (s *Service) StatusCounts() map[types.WorkflowStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[types.WorkflowStatus]int, 4)
	for _, wf := range s.workflows {
		out[wf.Status]++
	}
	return out
}

func (s *Service) record(ctx context.Context, eventType string, agentID types.AgentID, data map[string]any) {
	if s.telemetry == nil {
		return
	}
	if _, err := s.telemetry.Record(ctx, &types.TelemetryEvent{
		Type:    eventType,
		AgentID: agentID,
		Data:    data,
	}); err != nil {
		slog.Warn("record workflow telemetry failed", "event_type", eventType, "error", err)
	}
}
