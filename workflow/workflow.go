// Package workflow holds the definitions, executions and templates the
// engine operates on.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/condition"
)

type Workflow struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Trigger describes what fires the workflow. It is stored and returned as is.
	Trigger json.RawMessage `json:"trigger,omitempty"`

	// Conditions is evaluated against the trigger data. Nil means always met.
	Conditions *condition.Tree `json:"conditions,omitempty"`

	Actions []action.Descriptor `json:"actions"`

	// Nodes and Edges are the builder graph. They are never interpreted.
	Nodes json.RawMessage `json:"nodes,omitempty"`
	Edges json.RawMessage `json:"edges,omitempty"`

	IsActive bool `json:"isActive"`

	// Version starts at 1 and increases by one with every update.
	Version int `json:"version"`

	Stats Stats `json:"stats"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats aggregates the settled executions of a workflow.
type Stats struct {
	ExecutionCount       int64         `json:"executionCount"`
	SuccessCount         int64         `json:"successCount"`
	FailureCount         int64         `json:"failureCount"`
	LastExecutedAt       *time.Time    `json:"lastExecutedAt,omitempty"`
	AverageExecutionTime time.Duration `json:"averageExecutionTime"`
	TotalExecutionTime   time.Duration `json:"totalExecutionTime"`
}

// Record returns the stats after one more settlement.
func (s Stats) Record(success bool, duration time.Duration, at time.Time) Stats {
	s.ExecutionCount++
	if success {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}

	s.TotalExecutionTime += duration
	s.AverageExecutionTime = s.TotalExecutionTime / time.Duration(s.ExecutionCount)

	at = at.UTC()
	s.LastExecutedAt = &at

	return s
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	c := *w
	c.Trigger = cloneRaw(w.Trigger)
	c.Nodes = cloneRaw(w.Nodes)
	c.Edges = cloneRaw(w.Edges)
	c.Actions = CloneActions(w.Actions)
	c.Conditions = cloneConditions(w.Conditions)

	if w.Stats.LastExecutedAt != nil {
		t := *w.Stats.LastExecutedAt
		c.Stats.LastExecutedAt = &t
	}

	return &c
}

// CloneActions deep copies an action list through its JSON form.
func CloneActions(actions []action.Descriptor) []action.Descriptor {
	if actions == nil {
		return nil
	}

	b, err := json.Marshal(actions)
	if err != nil {
		panic(err)
	}

	var c []action.Descriptor
	if err := json.Unmarshal(b, &c); err != nil {
		panic(err)
	}

	return c
}

func cloneConditions(t *condition.Tree) *condition.Tree {
	if t == nil {
		return nil
	}

	b, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}

	c, err := condition.Parse(b)
	if err != nil {
		panic(err)
	}

	return c
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}

	return append(json.RawMessage(nil), r...)
}
