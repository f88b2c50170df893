// Package catalog caches the backend's agent and tool catalogs and owns
// agent-mode name normalization.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentchat/agentchat-go/internal/api"
)

// Agent modes supported by the backend.
const (
	ModeReact       = "react"
	ModePlanExecute = "plan_execute"
	ModeCodeAct     = "codeact"
	ModeMCP         = "mcp"
)

// NormalizeMode maps legacy or variant agent mode spellings to their
// canonical names ("ReAct" -> "react", "plan-execute" -> "plan_execute").
func NormalizeMode(mode string) string {
	m := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(mode)), "-", "_")
	if m == "planexecute" {
		return ModePlanExecute
	}
	return m
}

// Registry caches catalog entries fetched from the backend.
type Registry struct {
	mu     sync.Mutex
	agents map[string]api.AgentInfo
	tools  map[string]api.ToolInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]api.AgentInfo),
		tools:  make(map[string]api.ToolInfo),
	}
}

// SetAgents replaces the cached agent catalog, keyed by normalized mode.
func (r *Registry) SetAgents(agents []api.AgentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]api.AgentInfo, len(agents))
	for _, a := range agents {
		r.agents[NormalizeMode(a.Mode)] = a
	}
}

// SetTools replaces the cached tool catalog.
func (r *Registry) SetTools(tools []api.ToolInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]api.ToolInfo, len(tools))
	for _, t := range tools {
		r.tools[t.Name] = t
	}
}

// Agent retrieves a catalog entry by mode.
func (r *Registry) Agent(mode string) (api.AgentInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[NormalizeMode(mode)]
	if !ok {
		return api.AgentInfo{}, fmt.Errorf("unknown agent mode: %s", mode)
	}
	return a, nil
}

// Agents returns the cached agent catalog sorted by mode.
func (r *Registry) Agents() []api.AgentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.AgentInfo, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mode < out[j].Mode })
	return out
}

// Tools returns the cached tool catalog sorted by name.
func (r *Registry) Tools() []api.ToolInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]api.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
