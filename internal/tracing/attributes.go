package tracing

const (
	WorkflowID   = "workflow.id"
	WorkflowName = "workflow.name"
	WorkspaceID  = "workflow.workspace_id"

	ExecutionID     = "execution.id"
	ExecutionStatus = "execution.status"

	ActionType  = "action.type"
	ActionIndex = "action.index"

	TemplateID = "template.id"
)
