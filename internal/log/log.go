package log

const (
	NamespaceKey = "workflows"

	WorkflowIDKey   = NamespaceKey + ".workflow.id"
	WorkflowNameKey = NamespaceKey + ".workflow.name"
	WorkspaceIDKey  = NamespaceKey + ".workspace.id"
	VersionKey      = NamespaceKey + ".workflow.version"

	ExecutionIDKey     = NamespaceKey + ".execution.id"
	ExecutionStatusKey = NamespaceKey + ".execution.status"
	RetryOfKey         = NamespaceKey + ".execution.retry_of"

	ActionTypeKey  = NamespaceKey + ".action.type"
	ActionIndexKey = NamespaceKey + ".action.index"

	TemplateIDKey = NamespaceKey + ".template.id"

	DurationKey = NamespaceKey + ".duration_ms"
	StackKey    = NamespaceKey + ".stack"
)
