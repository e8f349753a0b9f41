package llm

// TaskType is the routing enum from spec §4.4. Agent nodes never name a
// model directly; they tag a call with the TaskType that best matches its
// latency/quality tradeoff and let the Router pick a live provider/model.
type TaskType string

// The task types the gateway routes, exactly as enumerated in spec §4.4.
const (
	TaskFastGeneration   TaskType = "fast_generation"
	TaskComplexReasoning TaskType = "complex_reasoning"
	TaskHighQuality      TaskType = "high_quality"
	TaskAnalysis         TaskType = "analysis"
	TaskDrafting         TaskType = "drafting"
	TaskRefinement       TaskType = "refinement"
	TaskCreative         TaskType = "creative"
	TaskStructuredOutput TaskType = "structured_output"
)

// Route is one TaskType's resolved provider and model name.
type Route struct {
	Provider string
	Model    string
}

// Router resolves a TaskType to a provider/model pair, with a fallback
// default for any task not explicitly configured.
type Router struct {
	routes   map[TaskType]Route
	fallback Route
}

// NewRouter builds a Router. fallback is used for any TaskType with no
// explicit entry in routes.
func NewRouter(routes map[TaskType]Route, fallback Route) *Router {
	r := &Router{routes: make(map[TaskType]Route, len(routes)), fallback: fallback}
	for k, v := range routes {
		r.routes[k] = v
	}
	return r
}

// DefaultRouter assigns cheap/fast models to extraction-style tasks and a
// stronger reasoning model to drafting, reasoning, and critique, per spec
// §4.4's intent that routing trade latency against quality per call site.
func DefaultRouter() *Router {
	return NewRouter(map[TaskType]Route{
		TaskFastGeneration:   {Provider: "openai", Model: "gpt-4o-mini"},
		TaskComplexReasoning: {Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
		TaskHighQuality:      {Provider: "openai", Model: "gpt-4o"},
		TaskAnalysis:         {Provider: "openai", Model: "gpt-4o-mini"},
		TaskDrafting:         {Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
		TaskRefinement:       {Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
		TaskCreative:         {Provider: "google", Model: "gemini-1.5-pro"},
		TaskStructuredOutput: {Provider: "openai", Model: "gpt-4o-mini"},
	}, Route{Provider: "openai", Model: "gpt-4o-mini"})
}

// Route resolves task to its configured provider/model, or the fallback.
func (r *Router) Route(task TaskType) (provider, model string) {
	if route, ok := r.routes[task]; ok {
		return route.Provider, route.Model
	}
	return r.fallback.Provider, r.fallback.Model
}
