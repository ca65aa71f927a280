package workflow

import (
	"encoding/json"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
)

// Patch is a partial update of a workflow definition. Nil fields are kept.
//
// Conditions can be removed by setting ClearConditions.
type Patch struct {
	Name            *string              `json:"name,omitempty"`
	Description     *string              `json:"description,omitempty"`
	Trigger         json.RawMessage      `json:"trigger,omitempty"`
	Conditions      *condition.Tree      `json:"conditions,omitempty"`
	ClearConditions bool                 `json:"clearConditions,omitempty"`
	Actions         *[]action.Descriptor `json:"actions,omitempty"`
	Nodes           json.RawMessage      `json:"nodes,omitempty"`
	Edges           json.RawMessage      `json:"edges,omitempty"`
	IsActive        *bool                `json:"isActive,omitempty"`
}

// Apply returns a copy of wf with the patch applied and the version bumped
// by one. The version is bumped even when the patch changes nothing.
func (p Patch) Apply(wf *Workflow) *Workflow {
	c := wf.Clone()

	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Trigger != nil {
		c.Trigger = cloneRaw(p.Trigger)
	}
	if p.ClearConditions {
		c.Conditions = nil
	} else if p.Conditions != nil {
		c.Conditions = cloneConditions(p.Conditions)
	}
	if p.Actions != nil {
		c.Actions = CloneActions(*p.Actions)
	}
	if p.Nodes != nil {
		c.Nodes = cloneRaw(p.Nodes)
	}
	if p.Edges != nil {
		c.Edges = cloneRaw(p.Edges)
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}

	c.Version++

	return c
}
