package redis

import "fmt"

// workflowKey is a HASH holding the definition under "data" and the stats
// counters as separate fields.
func workflowKey(keyPrefix, id string) string {
	return fmt.Sprintf("%vworkflow:%v", keyPrefix, id)
}

// workspaceWorkflowsKey is a ZSET of workflow ids scored by creation time.
func workspaceWorkflowsKey(keyPrefix, workspaceID string) string {
	return fmt.Sprintf("%vworkspace-workflows:%v", keyPrefix, workspaceID)
}

// executionKey is a HASH holding the execution under "data" and its status.
func executionKey(keyPrefix, id string) string {
	return fmt.Sprintf("%vexecution:%v", keyPrefix, id)
}

// workflowExecutionsKey is a ZSET of execution ids scored by start time.
func workflowExecutionsKey(keyPrefix, workflowID string) string {
	return fmt.Sprintf("%vworkflow-executions:%v", keyPrefix, workflowID)
}

func templateKey(keyPrefix, id string) string {
	return fmt.Sprintf("%vtemplate:%v", keyPrefix, id)
}

// templatesKey is a SET of all template ids.
func templatesKey(keyPrefix string) string {
	return keyPrefix + "templates"
}
