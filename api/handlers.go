package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/labstack/echo/v4"
)

// WorkflowRequest is the body of a create request. Workflows are active
// unless isActive is false.
type WorkflowRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Trigger     json.RawMessage     `json:"trigger"`
	Conditions  *condition.Tree     `json:"conditions"`
	Actions     []action.Descriptor `json:"actions"`
	Nodes       json.RawMessage     `json:"nodes"`
	Edges       json.RawMessage     `json:"edges"`
	IsActive    *bool               `json:"isActive"`
}

type ToggleRequest struct {
	IsActive bool `json:"isActive"`
}

type InstantiateRequest struct {
	WorkspaceID string              `json:"workspaceId"`
	Overrides   *workflow.Overrides `json:"overrides"`
}

// bind decodes the request body with echo's binder. Binder errors already
// carry a status (400 for malformed JSON, 415 for other content types).
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}

		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	return nil
}

func (s *Server) listWorkflows(c echo.Context) error {
	wfs, err := s.engine.GetWorkflows(c.Request().Context(), c.Param("workspaceID"))
	if err != nil {
		return err
	}

	if wfs == nil {
		wfs = []*workflow.Workflow{}
	}

	return c.JSON(http.StatusOK, wfs)
}

func (s *Server) createWorkflow(c echo.Context) error {
	var req WorkflowRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	wf, err := s.engine.CreateWorkflow(c.Request().Context(), &workflow.Workflow{
		WorkspaceID: c.Param("workspaceID"),
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		IsActive:    isActive,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, wf)
}

func (s *Server) getWorkflow(c echo.Context) error {
	wf, err := s.engine.GetWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, wf)
}

func (s *Server) updateWorkflow(c echo.Context) error {
	var patch workflow.Patch
	if err := bind(c, &patch); err != nil {
		return err
	}

	wf, err := s.engine.UpdateWorkflow(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, wf)
}

func (s *Server) deleteWorkflow(c echo.Context) error {
	if err := s.engine.DeleteWorkflow(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) toggleWorkflow(c echo.Context) error {
	var req ToggleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	wf, err := s.engine.ToggleWorkflow(c.Request().Context(), c.Param("id"), req.IsActive)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, wf)
}

func (s *Server) executeWorkflow(c echo.Context) error {
	trigger, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body: "+err.Error())
	}

	exec, err := s.engine.ExecuteWorkflow(c.Request().Context(), c.Param("id"), json.RawMessage(trigger))
	if err != nil {
		return err
	}

	return s.respondExecution(c, exec)
}

func (s *Server) retryExecution(c echo.Context) error {
	exec, err := s.engine.RetryExecution(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return s.respondExecution(c, exec)
}

// respondExecution answers with the RUNNING execution, or with the settled
// one when the caller asked to wait.
func (s *Server) respondExecution(c echo.Context, exec *workflow.Execution) error {
	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); !wait {
		return c.JSON(http.StatusAccepted, exec)
	}

	settled, err := s.engine.WaitForExecution(c.Request().Context(), exec.ID, s.waitTimeout)
	if err != nil {
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	}

	return c.JSON(http.StatusOK, settled)
}

func (s *Server) listExecutions(c echo.Context) error {
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}

		limit = n
	}

	executions, err := s.engine.GetExecutions(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}

	if executions == nil {
		executions = []*workflow.Execution{}
	}

	return c.JSON(http.StatusOK, executions)
}

func (s *Server) getExecution(c echo.Context) error {
	exec, err := s.engine.GetExecution(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, exec)
}

func (s *Server) listTemplates(c echo.Context) error {
	templates, err := s.engine.GetWorkflowTemplates(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return err
	}

	if templates == nil {
		templates = []*workflow.Template{}
	}

	return c.JSON(http.StatusOK, templates)
}

func (s *Server) getTemplate(c echo.Context) error {
	t, err := s.engine.GetWorkflowTemplate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, t)
}

func (s *Server) instantiateTemplate(c echo.Context) error {
	var req InstantiateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	wf, err := s.engine.CreateWorkflowFromTemplate(c.Request().Context(), c.Param("id"), req.WorkspaceID, req.Overrides)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, wf)
}
