package metrickeys

const (
	Prefix = "workflows."

	// Workflows
	WorkflowCreated = Prefix + "workflow.created"
	WorkflowUpdated = Prefix + "workflow.updated"
	WorkflowDeleted = Prefix + "workflow.deleted"

	// Executions
	ExecutionStarted  = Prefix + "execution.started"
	ExecutionFinished = Prefix + "execution.finished"
	ExecutionDuration = Prefix + "execution.duration"
	ExecutionRetried  = Prefix + "execution.retried"

	// Actions
	ActionDispatched = Prefix + "action.dispatched"
	ActionDuration   = Prefix + "action.duration"

	// Templates
	TemplateInstantiated = Prefix + "template.instantiated"
	TemplateCacheHit     = Prefix + "template.cache.hit"
	TemplateCacheMiss    = Prefix + "template.cache.miss"
	TemplateCacheSize    = Prefix + "template.cache.size"
)

// Tag names
const (
	// Backend being used
	Backend = "backend"

	Status     = "status"
	ActionType = "action"
	Category   = "category"
)
