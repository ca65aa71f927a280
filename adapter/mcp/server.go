// Package mcp exposes workflow operations as MCP tools, so agents can look up
// and fire workflows.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/engine"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "Pulse Workflows"
	serverVersion = "1.0.0"
)

type Server struct {
	mcpServer *server.MCPServer
	engine    *engine.Engine
}

func NewServer(e *engine.Engine) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(true),
		),
		engine: e,
	}

	s.registerTools()

	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Handler serves the tools over SSE below basePath.
func (s *Server) Handler(basePath string) http.Handler {
	return server.NewSSEServer(s.mcpServer, server.WithStaticBasePath(basePath))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the workflows of a workspace"),
			mcp.WithString("workspaceId", mcp.Required(), mcp.Description("The workspace to list")),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get a workflow definition and its stats"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"toggle_workflow",
			mcp.WithDescription("Activate or deactivate a workflow"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithBoolean("isActive", mcp.Required(), mcp.Description("Whether the workflow should run")),
		),
		s.handleToggleWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"execute_workflow",
			mcp.WithDescription("Fire a workflow with the given trigger data. Returns the running execution."),
			mcp.WithString("workflowId", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("triggerData", mcp.Description("The trigger payload as a JSON document")),
		),
		s.handleExecuteWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_execution",
			mcp.WithDescription("Get an execution with its steps"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the execution")),
		),
		s.handleGetExecution,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"retry_execution",
			mcp.WithDescription("Retry a failed execution with its original trigger data"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the failed execution")),
		),
		s.handleRetryExecution,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_templates",
			mcp.WithDescription("List public workflow templates"),
			mcp.WithString("category", mcp.Description("Only list templates of this category")),
		),
		s.handleListTemplates,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"create_workflow_from_template",
			mcp.WithDescription("Create a workflow from a template"),
			mcp.WithString("templateId", mcp.Required(), mcp.Description("The ID of the template")),
			mcp.WithString("workspaceId", mcp.Required(), mcp.Description("The workspace of the new workflow")),
		),
		s.handleCreateFromTemplate,
	)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, mcp.NewToolResultError("Invalid arguments type")
	}

	return args, nil
}

func requiredString(args map[string]interface{}, name string) (string, *mcp.CallToolResult) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", mcp.NewToolResultError("Missing required parameter: " + name)
	}

	return v, nil
}

func jsonResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	workspaceID, res := requiredString(args, "workspaceId")
	if res != nil {
		return res, nil
	}

	wfs, err := s.engine.GetWorkflows(ctx, workspaceID)
	if wfs == nil {
		wfs = []*workflow.Workflow{}
	}

	return jsonResult(wfs, err)
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	id, res := requiredString(args, "id")
	if res != nil {
		return res, nil
	}

	return jsonResult(s.engine.GetWorkflow(ctx, id))
}

func (s *Server) handleToggleWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	id, res := requiredString(args, "id")
	if res != nil {
		return res, nil
	}

	isActive, ok := args["isActive"].(bool)
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: isActive"), nil
	}

	return jsonResult(s.engine.ToggleWorkflow(ctx, id, isActive))
}

func (s *Server) handleExecuteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	workflowID, res := requiredString(args, "workflowId")
	if res != nil {
		return res, nil
	}

	var trigger json.RawMessage
	if v, ok := args["triggerData"].(string); ok {
		trigger = json.RawMessage(v)
	}

	return jsonResult(s.engine.ExecuteWorkflow(ctx, workflowID, trigger))
}

func (s *Server) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	id, res := requiredString(args, "id")
	if res != nil {
		return res, nil
	}

	return jsonResult(s.engine.GetExecution(ctx, id))
}

func (s *Server) handleRetryExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	id, res := requiredString(args, "id")
	if res != nil {
		return res, nil
	}

	return jsonResult(s.engine.RetryExecution(ctx, id))
}

func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	category, _ := args["category"].(string)

	templates, err := s.engine.GetWorkflowTemplates(ctx, category)
	if templates == nil {
		templates = []*workflow.Template{}
	}

	return jsonResult(templates, err)
}

func (s *Server) handleCreateFromTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, res := arguments(request)
	if res != nil {
		return res, nil
	}

	templateID, res := requiredString(args, "templateId")
	if res != nil {
		return res, nil
	}

	workspaceID, res := requiredString(args, "workspaceId")
	if res != nil {
		return res, nil
	}

	return jsonResult(s.engine.CreateWorkflowFromTemplate(ctx, templateID, workspaceID, nil))
}
