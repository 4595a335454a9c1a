// internal/workflow/templates.go
package workflow

import (
	"github.com/user/oraclegate/internal/types"
)

// Template expands a workflow type into its task graph. Templates mirror
// the oracle pipeline: independent fetches fan in to analysis, analysis
// feeds the on-chain submission.
type Template func(agentID types.AgentID, params map[string]any) []TaskSpec

var templates = map[string]Template{
	"price_feed":      priceFeedTemplate,
	"market_analysis": marketAnalysisTemplate,
}

// Expand builds the task specs for a named workflow type.
func Expand(workflowType string, agentID types.AgentID, params map[string]any) ([]TaskSpec, error) {
	tmpl, ok := templates[workflowType]
	if !ok {
		return nil, types.E(types.KindValidation, "unknown workflow type %q", workflowType)
	}
	return tmpl(agentID, params), nil
}

// TemplateNames lists the known workflow types.
func TemplateNames() []string {
	out := make([]string, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	return out
}

func priceFeedTemplate(agentID types.AgentID, params map[string]any) []TaskSpec {
	return []TaskSpec{
		{Type: "price_lookup", Description: "fetch current price", AgentID: agentID, Params: params, Priority: 10},
		{Type: "historical_data", Description: "fetch price history", AgentID: agentID, Params: params, Priority: 8},
		{Type: "market_analysis", Description: "analyze fetched data", AgentID: agentID, Params: params, Priority: 5, DependsOn: []int{0, 1}},
		{Type: "oracle_feed", Description: "submit analyzed price on-chain", AgentID: agentID, Params: params, Priority: 1, DependsOn: []int{2}},
	}
}

func marketAnalysisTemplate(agentID types.AgentID, params map[string]any) []TaskSpec {
	return []TaskSpec{
		{Type: "price_lookup", Description: "fetch current price", AgentID: agentID, Params: params, Priority: 10},
		{Type: "sentiment_scan", Description: "scan market sentiment", AgentID: agentID, Params: params, Priority: 9},
		{Type: "market_analysis", Description: "combine signals", AgentID: agentID, Params: params, Priority: 5, DependsOn: []int{0, 1}},
	}
}
