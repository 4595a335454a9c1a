// internal/workflow/pipeline.go
package workflow

import (
	"github.com/user/oraclegate/internal/bridge"
	"github.com/user/oraclegate/internal/types"
)

// pipelineTools maps template task types to the configured tool each one
// delegates to. Types without a configured tool keep whatever executor is
// already registered.
var pipelineTools = map[string]string{
	"price_lookup":    "get_price",
	"market_analysis": "analyze_market",
	"oracle_feed":     "feed_oracle",
}

// BindPipeline wires the template task types to real executors: tool-backed
// types delegate through the bridge, internal types complete locally.
// Commands is the configured tool set keyed by tool name.
func BindPipeline(registry *Registry, runner ToolRunner, commands map[string]bridge.Command) {
	for taskType, tool := range pipelineTools {
		cmd, ok := commands[tool]
		if !ok {
			continue
		}
		registry.Register(taskType, NewToolExecutor(runner, cmd))
	}

	registry.Register("historical_data", NewSimulatedExecutor(func(task *types.WorkflowTask) map[string]any {
		return map[string]any{"series": "historical", "params": task.Params}
	}))
	registry.Register("sentiment_scan", NewSimulatedExecutor(func(task *types.WorkflowTask) map[string]any {
		return map[string]any{"sentiment": "neutral", "params": task.Params}
	}))
	registry.Register("validation", NewSimulatedExecutor(func(task *types.WorkflowTask) map[string]any {
		return map[string]any{"validated": true, "params": task.Params}
	}))
	registry.Register("aggregation", NewSimulatedExecutor(func(task *types.WorkflowTask) map[string]any {
		return map[string]any{"aggregated": true, "params": task.Params}
	}))
}
