package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
)

const workflowColumns = `id, workspace_id, name, description, trigger_def, conditions, actions, nodes, edges,
	is_active, version, execution_count, success_count, failure_count, last_executed_at,
	average_execution_time, total_execution_time, created_at, updated_at`

// maxUpdateAttempts bounds optimistic retries when concurrent updates race.
const maxUpdateAttempts = 5

var errVersionConflict = errors.New("workflow was modified concurrently")

func scanWorkflow(row interface{ Scan(dest ...any) error }) (*workflow.Workflow, error) {
	var (
		wf                               workflow.Workflow
		description, trigger, conds      sql.NullString
		actions                          string
		nodes, edges                     sql.NullString
		lastExecutedAt                   sql.NullInt64
		avg, total, createdAt, updatedAt int64
	)

	if err := row.Scan(
		&wf.ID, &wf.WorkspaceID, &wf.Name, &description, &trigger, &conds, &actions, &nodes, &edges,
		&wf.IsActive, &wf.Version, &wf.Stats.ExecutionCount, &wf.Stats.SuccessCount, &wf.Stats.FailureCount, &lastExecutedAt,
		&avg, &total, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	wf.Description = description.String
	wf.Trigger = decodeRaw(trigger)
	wf.Nodes = decodeRaw(nodes)
	wf.Edges = decodeRaw(edges)
	wf.Stats.LastExecutedAt = decodeTimePtr(lastExecutedAt)
	wf.Stats.AverageExecutionTime = time.Duration(avg)
	wf.Stats.TotalExecutionTime = time.Duration(total)
	wf.CreatedAt = decodeTime(createdAt)
	wf.UpdatedAt = decodeTime(updatedAt)

	c, err := decodeConditions(conds)
	if err != nil {
		return nil, err
	}
	wf.Conditions = c

	if err := json.Unmarshal([]byte(actions), &wf.Actions); err != nil {
		return nil, fmt.Errorf("decoding actions: %w", err)
	}

	return &wf, nil
}

func (s *Store) getWorkflow(ctx context.Context, q querier, id string) (*workflow.Workflow, error) {
	row := q.QueryRowContext(ctx, s.dialect.Rebind("SELECT "+workflowColumns+" FROM workflows WHERE id = ?"), id)

	wf, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("getting workflow: %w", err)
	}

	return wf, nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	return s.getWorkflow(ctx, s.db, id)
}

func (s *Store) ListWorkflows(ctx context.Context, workspaceID string) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		"SELECT "+workflowColumns+" FROM workflows WHERE workspace_id = ? ORDER BY created_at DESC, id DESC"),
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	defer rows.Close()

	var wfs []*workflow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow: %w", err)
		}

		wfs = append(wfs, wf)
	}

	return wfs, rows.Err()
}

func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	conds, err := encodeConditions(wf.Conditions)
	if err != nil {
		return err
	}

	actions, err := encodeJSON(nonNilActions(wf))
	if err != nil {
		return fmt.Errorf("encoding actions: %w", err)
	}

	_, err = s.exec(ctx, s.db,
		"INSERT INTO workflows ("+workflowColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		wf.ID, wf.WorkspaceID, wf.Name, nullString(wf.Description), encodeRaw(wf.Trigger), conds, actions,
		encodeRaw(wf.Nodes), encodeRaw(wf.Edges),
		wf.IsActive, wf.Version, wf.Stats.ExecutionCount, wf.Stats.SuccessCount, wf.Stats.FailureCount,
		encodeTimePtr(wf.Stats.LastExecutedAt), int64(wf.Stats.AverageExecutionTime), int64(wf.Stats.TotalExecutionTime),
		encodeTime(wf.CreatedAt), encodeTime(wf.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", err)
	}

	return nil
}

func (s *Store) UpdateWorkflow(ctx context.Context, id string, patch workflow.Patch) (*workflow.Workflow, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		wf, err := s.updateWorkflow(ctx, id, patch)
		if errors.Is(err, errVersionConflict) {
			continue
		}

		return wf, err
	}

	return nil, errVersionConflict
}

func (s *Store) updateWorkflow(ctx context.Context, id string, patch workflow.Patch) (*workflow.Workflow, error) {
	current, err := s.getWorkflow(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = s.options.Clock.Now().UTC()

	conds, err := encodeConditions(updated.Conditions)
	if err != nil {
		return nil, err
	}

	actions, err := encodeJSON(nonNilActions(updated))
	if err != nil {
		return nil, fmt.Errorf("encoding actions: %w", err)
	}

	// Only definition columns are written, concurrent stats updates are kept.
	n, err := s.exec(ctx, s.db,
		`UPDATE workflows SET name = ?, description = ?, trigger_def = ?, conditions = ?, actions = ?, nodes = ?, edges = ?,
			is_active = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		updated.Name, nullString(updated.Description), encodeRaw(updated.Trigger), conds, actions,
		encodeRaw(updated.Nodes), encodeRaw(updated.Edges), updated.IsActive, encodeTime(updated.UpdatedAt),
		id, current.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("updating workflow: %w", err)
	}

	if n == 0 {
		return nil, errVersionConflict
	}

	return s.getWorkflow(ctx, s.db, id)
}

func (s *Store) ToggleWorkflow(ctx context.Context, id string, isActive bool) (*workflow.Workflow, error) {
	n, err := s.exec(ctx, s.db,
		"UPDATE workflows SET is_active = ?, updated_at = ? WHERE id = ?",
		isActive, encodeTime(s.options.Clock.Now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("toggling workflow: %w", err)
	}

	if n == 0 {
		return nil, backend.ErrWorkflowNotFound
	}

	return s.getWorkflow(ctx, s.db, id)
}

func (s *Store) DeleteWorkflow(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, "DELETE FROM executions WHERE workflow_id = ?", id); err != nil {
			return fmt.Errorf("deleting executions: %w", err)
		}

		n, err := s.exec(ctx, tx, "DELETE FROM workflows WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting workflow: %w", err)
		}

		if n == 0 {
			return backend.ErrWorkflowNotFound
		}

		return nil
	})
}

// IncrementWorkflowStats updates all counters in one statement. The average
// is assigned first since MySQL evaluates assignments left to right.
func (s *Store) IncrementWorkflowStats(ctx context.Context, workflowID string, delta backend.StatsDelta) error {
	var success, failure int64
	if delta.Success {
		success = 1
	} else {
		failure = 1
	}

	d := int64(delta.Duration)

	n, err := s.exec(ctx, s.db,
		`UPDATE workflows SET
			average_execution_time = (total_execution_time + ?) `+s.dialect.IntDiv+` (execution_count + 1),
			total_execution_time = total_execution_time + ?,
			execution_count = execution_count + 1,
			success_count = success_count + ?,
			failure_count = failure_count + ?,
			last_executed_at = ?
		WHERE id = ?`,
		d, d, success, failure, encodeTime(delta.ExecutedAt), workflowID,
	)
	if err != nil {
		return fmt.Errorf("incrementing workflow stats: %w", err)
	}

	if n == 0 {
		return backend.ErrWorkflowNotFound
	}

	return nil
}

func nonNilActions(wf *workflow.Workflow) any {
	if wf.Actions == nil {
		return []any{}
	}

	return wf.Actions
}
