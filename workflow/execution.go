package workflow

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

func (s ExecutionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *ExecutionStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		*s = ExecutionStatus(v)
	case []byte:
		*s = ExecutionStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into ExecutionStatus", value)
	}

	return nil
}

type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusNotMet  StepStatus = "not_met"
)

// StepKindCondition is the kind of the step recorded for an unmet condition
// tree. Action steps use the action type as their kind.
const StepKindCondition = "condition"

// Step is one record in an execution's log.
type Step struct {
	Kind     string          `json:"kind"`
	Status   StepStatus      `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

type Execution struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`

	// TriggerData is the payload the execution was started with. It is never
	// modified after creation.
	TriggerData json.RawMessage `json:"triggerData,omitempty"`

	Status ExecutionStatus `json:"status"`
	Steps  []Step          `json:"steps"`

	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Duration    *time.Duration `json:"duration,omitempty"`

	// Error is set only for failed executions.
	Error string `json:"error,omitempty"`

	// RetryOf is the id of the failed execution this one retries.
	RetryOf string `json:"retryOf,omitempty"`
}

// Settlement is the terminal state persisted for a running execution.
type Settlement struct {
	Status      ExecutionStatus
	Steps       []Step
	CompletedAt time.Time
	Duration    time.Duration
	Error       string
}

// Apply returns a copy of e with the settlement attached.
func (s Settlement) Apply(e *Execution) *Execution {
	c := e.Clone()
	c.Status = s.Status
	c.Steps = cloneSteps(s.Steps)

	completedAt := s.CompletedAt.UTC()
	c.CompletedAt = &completedAt

	d := s.Duration
	c.Duration = &d
	c.Error = s.Error

	return c
}

func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}

	c := *e
	c.TriggerData = cloneRaw(e.TriggerData)
	c.Steps = cloneSteps(e.Steps)

	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}

	if e.Duration != nil {
		d := *e.Duration
		c.Duration = &d
	}

	return &c
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}

	c := make([]Step, len(steps))
	for i, s := range steps {
		s.Result = cloneRaw(s.Result)
		c[i] = s
	}

	return c
}
