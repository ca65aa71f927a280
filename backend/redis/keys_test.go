package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Keys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"workflow", workflowKey("p:", "wf1"), "p:workflow:wf1"},
		{"workspace", workspaceWorkflowsKey("p:", "ws1"), "p:workspace-workflows:ws1"},
		{"execution", executionKey("", "e1"), "execution:e1"},
		{"workflowExecutions", workflowExecutionsKey("p:", "wf1"), "p:workflow-executions:wf1"},
		{"template", templateKey("p:", "t1"), "p:template:t1"},
		{"templates", templatesKey("p:"), "p:templates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.got)
		})
	}
}
