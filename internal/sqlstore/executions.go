package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
)

const executionColumns = `id, workflow_id, trigger_data, status, steps, started_at, completed_at, duration, error, retry_of`

func scanExecution(row interface{ Scan(dest ...any) error }) (*workflow.Execution, error) {
	var (
		e                     workflow.Execution
		triggerData, errMsg   sql.NullString
		retryOf               sql.NullString
		steps                 string
		startedAt             int64
		completedAt, duration sql.NullInt64
	)

	if err := row.Scan(&e.ID, &e.WorkflowID, &triggerData, &e.Status, &steps, &startedAt, &completedAt, &duration, &errMsg, &retryOf); err != nil {
		return nil, err
	}

	e.TriggerData = decodeRaw(triggerData)
	e.StartedAt = decodeTime(startedAt)
	e.CompletedAt = decodeTimePtr(completedAt)
	e.Duration = decodeDurationPtr(duration)
	e.Error = errMsg.String
	e.RetryOf = retryOf.String

	if err := json.Unmarshal([]byte(steps), &e.Steps); err != nil {
		return nil, fmt.Errorf("decoding steps: %w", err)
	}

	return &e, nil
}

func encodeSteps(steps []workflow.Step) (string, error) {
	if steps == nil {
		steps = []workflow.Step{}
	}

	s, err := encodeJSON(steps)
	if err != nil {
		return "", fmt.Errorf("encoding steps: %w", err)
	}

	return s, nil
}

func (s *Store) CreateExecution(ctx context.Context, e *workflow.Execution) error {
	steps, err := encodeSteps(e.Steps)
	if err != nil {
		return err
	}

	var duration sql.NullInt64
	if e.Duration != nil {
		duration = sql.NullInt64{Int64: int64(*e.Duration), Valid: true}
	}

	_, err = s.exec(ctx, s.db,
		"INSERT INTO executions ("+executionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.WorkflowID, encodeRaw(e.TriggerData), e.Status, steps, encodeTime(e.StartedAt),
		encodeTimePtr(e.CompletedAt), duration, nullString(e.Error), nullString(e.RetryOf),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}

	return nil
}

func (s *Store) UpdateExecution(ctx context.Context, id string, settlement workflow.Settlement) (*workflow.Execution, error) {
	steps, err := encodeSteps(settlement.Steps)
	if err != nil {
		return nil, err
	}

	n, err := s.exec(ctx, s.db,
		"UPDATE executions SET status = ?, steps = ?, completed_at = ?, duration = ?, error = ? WHERE id = ? AND status = ?",
		settlement.Status, steps, encodeTime(settlement.CompletedAt), int64(settlement.Duration), nullString(settlement.Error),
		id, workflow.ExecutionStatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("settling execution: %w", err)
	}

	if n == 0 {
		if _, err := s.GetExecution(ctx, id); err != nil {
			return nil, err
		}

		return nil, backend.ErrExecutionSettled
	}

	return s.GetExecution(ctx, id)
}

func (s *Store) GetExecution(ctx context.Context, id string) (*workflow.Execution, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind("SELECT "+executionColumns+" FROM executions WHERE id = ?"), id)

	e, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("getting execution: %w", err)
	}

	return e, nil
}

func (s *Store) ListExecutions(ctx context.Context, workflowID string, limit int) ([]*workflow.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions WHERE workflow_id = ? ORDER BY started_at DESC, id DESC"
	if l := s.options.EffectiveLimit(limit); l > 0 {
		query += " LIMIT " + strconv.Itoa(l)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), workflowID)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var executions []*workflow.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}

		executions = append(executions, e)
	}

	return executions, rows.Err()
}
