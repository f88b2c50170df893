package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentchat/agentchat-go/internal/api"
)

func TestNormalizeMode(t *testing.T) {
	cases := map[string]string{
		"ReAct":        "react",
		" react ":      "react",
		"plan-execute": "plan_execute",
		"PlanExecute":  "plan_execute",
		"plan_execute": "plan_execute",
		"CodeAct":      "codeact",
		"MCP":          "mcp",
		"":             "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeMode(in), "input %q", in)
	}
}

func TestRegistryAgents(t *testing.T) {
	r := NewRegistry()
	r.SetAgents([]api.AgentInfo{
		{Mode: "PlanExecute", Name: "Plan & Execute"},
		{Mode: "react", Name: "ReAct"},
	})

	a, err := r.Agent("plan-execute")
	require.NoError(t, err)
	require.Equal(t, "Plan & Execute", a.Name)

	_, err = r.Agent("nope")
	require.Error(t, err)

	agents := r.Agents()
	require.Len(t, agents, 2)
	require.Equal(t, "PlanExecute", agents[0].Mode)
}

func TestRegistryTools(t *testing.T) {
	r := NewRegistry()
	r.SetTools([]api.ToolInfo{{Name: "web_search"}, {Name: "delivery"}})

	tools := r.Tools()
	require.Len(t, tools, 2)
	require.Equal(t, "delivery", tools[0].Name)
}
