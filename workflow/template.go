package workflow

import (
	"encoding/json"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
)

// Template is a reusable workflow body. Only UsageCount changes after creation.
type Template struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	IsPublic    bool         `json:"isPublic"`
	Rating      float64      `json:"rating"`
	UsageCount  int64        `json:"usageCount"`
	Body        TemplateBody `json:"body"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type TemplateBody struct {
	Trigger    json.RawMessage     `json:"trigger,omitempty"`
	Conditions *condition.Tree     `json:"conditions,omitempty"`
	Actions    []action.Descriptor `json:"actions"`
	Nodes      json.RawMessage     `json:"nodes,omitempty"`
	Edges      json.RawMessage     `json:"edges,omitempty"`
}

// TemplateFilter narrows ListTemplates. Empty fields match everything.
type TemplateFilter struct {
	Category string

	// PublicOnly excludes non-public templates.
	PublicOnly bool
}

func (f TemplateFilter) Match(t *Template) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}

	if f.PublicOnly && !t.IsPublic {
		return false
	}

	return true
}

func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}

	c := *t
	c.Body = TemplateBody{
		Trigger:    cloneRaw(t.Body.Trigger),
		Conditions: cloneConditions(t.Body.Conditions),
		Actions:    CloneActions(t.Body.Actions),
		Nodes:      cloneRaw(t.Body.Nodes),
		Edges:      cloneRaw(t.Body.Edges),
	}

	return &c
}

// Overrides replace top level fields of a template body when instantiating
// it. Nil fields keep the template's value.
type Overrides struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	Trigger     json.RawMessage      `json:"trigger,omitempty"`
	Conditions  *condition.Tree      `json:"conditions,omitempty"`
	Actions     *[]action.Descriptor `json:"actions,omitempty"`
	Nodes       json.RawMessage      `json:"nodes,omitempty"`
	Edges       json.RawMessage      `json:"edges,omitempty"`
	IsActive    *bool                `json:"isActive,omitempty"`
}

// Instantiate builds a new, unsaved workflow from the template. Instantiated
// workflows are active unless the overrides say otherwise.
func (t *Template) Instantiate(workspaceID string, o *Overrides) *Workflow {
	tc := t.Clone()

	wf := &Workflow{
		WorkspaceID: workspaceID,
		Name:        tc.Name,
		Description: tc.Description,
		Trigger:     tc.Body.Trigger,
		Conditions:  tc.Body.Conditions,
		Actions:     tc.Body.Actions,
		Nodes:       tc.Body.Nodes,
		Edges:       tc.Body.Edges,
		IsActive:    true,
	}

	if o == nil {
		return wf
	}

	if o.Name != nil {
		wf.Name = *o.Name
	}
	if o.Description != nil {
		wf.Description = *o.Description
	}
	if o.Trigger != nil {
		wf.Trigger = cloneRaw(o.Trigger)
	}
	if o.Conditions != nil {
		wf.Conditions = cloneConditions(o.Conditions)
	}
	if o.Actions != nil {
		wf.Actions = CloneActions(*o.Actions)
	}
	if o.Nodes != nil {
		wf.Nodes = cloneRaw(o.Nodes)
	}
	if o.Edges != nil {
		wf.Edges = cloneRaw(o.Edges)
	}
	if o.IsActive != nil {
		wf.IsActive = *o.IsActive
	}

	return wf
}
