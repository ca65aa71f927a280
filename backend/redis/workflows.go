package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/action"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/redis/go-redis/v9"
)

const (
	fieldData            = "data"
	fieldWorkspaceID     = "workspace_id"
	fieldExecutionCount  = "execution_count"
	fieldSuccessCount    = "success_count"
	fieldFailureCount    = "failure_count"
	fieldTotalTime       = "total_execution_time"
	fieldAverageTime     = "average_execution_time"
	fieldLastExecutedAt  = "last_executed_at"
	fieldExecutionStatus = "status"
	fieldTemplateUsage   = "usage_count"
)

// marshalDefinition encodes everything but the stats, which live in their own
// hash fields so they can be incremented in place.
func marshalDefinition(wf *workflow.Workflow) ([]byte, error) {
	c := *wf
	c.Stats = workflow.Stats{}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	if c.Actions == nil {
		c.Actions = []action.Descriptor{}
	}

	return json.Marshal(&c)
}

func decodeWorkflow(fields map[string]string) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(fields[fieldData]), &wf); err != nil {
		return nil, fmt.Errorf("unmarshaling workflow: %w", err)
	}

	stats, err := decodeStats(fields)
	if err != nil {
		return nil, err
	}

	wf.Stats = stats

	return &wf, nil
}

func decodeStats(fields map[string]string) (workflow.Stats, error) {
	var s workflow.Stats

	ints := []struct {
		field string
		dst   *int64
	}{
		{fieldExecutionCount, &s.ExecutionCount},
		{fieldSuccessCount, &s.SuccessCount},
		{fieldFailureCount, &s.FailureCount},
		{fieldTotalTime, (*int64)(&s.TotalExecutionTime)},
		{fieldAverageTime, (*int64)(&s.AverageExecutionTime)},
	}

	for _, i := range ints {
		v, ok := fields[i.field]
		if !ok {
			continue
		}

		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, fmt.Errorf("parsing %v: %w", i.field, err)
		}

		*i.dst = n
	}

	if v, ok := fields[fieldLastExecutedAt]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return s, fmt.Errorf("parsing %v: %w", fieldLastExecutedAt, err)
		}

		at := time.Unix(0, n).UTC()
		s.LastExecutedAt = &at
	}

	return s, nil
}

func (rb *redisBackend) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	fields, err := rb.rdb.HGetAll(ctx, workflowKey(rb.keyPrefix(), id)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading workflow: %w", err)
	}

	if len(fields) == 0 {
		return nil, backend.ErrWorkflowNotFound
	}

	return decodeWorkflow(fields)
}

func (rb *redisBackend) ListWorkflows(ctx context.Context, workspaceID string) ([]*workflow.Workflow, error) {
	ids, err := rb.rdb.ZRevRange(ctx, workspaceWorkflowsKey(rb.keyPrefix(), workspaceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading workspace index: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	if _, err := rb.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			cmds = append(cmds, p.HGetAll(ctx, workflowKey(rb.keyPrefix(), id)))
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading workflows: %w", err)
	}

	wfs := make([]*workflow.Workflow, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		wf, err := decodeWorkflow(fields)
		if err != nil {
			return nil, err
		}

		wfs = append(wfs, wf)
	}

	// Index scores are in microseconds, restore the exact order
	sort.SliceStable(wfs, func(i, j int) bool {
		if !wfs[i].CreatedAt.Equal(wfs[j].CreatedAt) {
			return wfs[i].CreatedAt.After(wfs[j].CreatedAt)
		}

		return wfs[i].ID > wfs[j].ID
	})

	return wfs, nil
}

func (rb *redisBackend) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	data, err := marshalDefinition(wf)
	if err != nil {
		return fmt.Errorf("marshaling workflow: %w", err)
	}

	created, err := rb.createEntity(ctx,
		workflowKey(rb.keyPrefix(), wf.ID),
		workspaceWorkflowsKey(rb.keyPrefix(), wf.WorkspaceID),
		wf.CreatedAt.UnixMicro(), wf.ID,
		fieldData, string(data),
		fieldWorkspaceID, wf.WorkspaceID,
	)
	if err != nil {
		return fmt.Errorf("creating workflow: %w", err)
	}

	if !created {
		return fmt.Errorf("workflow %q: %w", wf.ID, backend.ErrAlreadyExists)
	}

	return nil
}

func (rb *redisBackend) UpdateWorkflow(ctx context.Context, id string, patch workflow.Patch) (*workflow.Workflow, error) {
	return rb.mutateWorkflow(ctx, id, patch.Apply)
}

func (rb *redisBackend) ToggleWorkflow(ctx context.Context, id string, isActive bool) (*workflow.Workflow, error) {
	return rb.mutateWorkflow(ctx, id, func(wf *workflow.Workflow) *workflow.Workflow {
		c := wf.Clone()
		c.IsActive = isActive
		return c
	})
}

// mutateWorkflow rewrites the definition of a workflow under WATCH. Stats
// fields are never written here so concurrent increments are not lost.
func (rb *redisBackend) mutateWorkflow(ctx context.Context, id string, f func(*workflow.Workflow) *workflow.Workflow) (*workflow.Workflow, error) {
	key := workflowKey(rb.keyPrefix(), id)

	var result *workflow.Workflow

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}

		if len(fields) == 0 {
			return backend.ErrWorkflowNotFound
		}

		wf, err := decodeWorkflow(fields)
		if err != nil {
			return err
		}

		updated := f(wf)
		updated.UpdatedAt = rb.options.Clock.Now().UTC()

		data, err := marshalDefinition(updated)
		if err != nil {
			return fmt.Errorf("marshaling workflow: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fieldData, string(data))
			return nil
		}); err != nil {
			return err
		}

		result = updated

		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := rb.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if errors.Is(err, backend.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("updating workflow: %w", err)
	}

	return nil, fmt.Errorf("updating workflow %q: too many concurrent modifications", id)
}

// Delete a workflow, its executions and its workspace index entry
// KEYS[1] - workflow key
// KEYS[2] - workflow executions index key
// ARGV[1] - execution key prefix
// ARGV[2] - workspace index key prefix
// ARGV[3] - workflow id
var deleteWorkflowCmd = redis.NewScript(
	`local workspaceId = redis.call("HGET", KEYS[1], "workspace_id")
	if not workspaceId then
		return 0
	end

	local executionIds = redis.call("ZRANGE", KEYS[2], 0, -1)
	for i = 1, #executionIds do
		redis.call("DEL", ARGV[1] .. executionIds[i])
	end

	redis.call("DEL", KEYS[2])
	redis.call("ZREM", ARGV[2] .. workspaceId, ARGV[3])
	redis.call("DEL", KEYS[1])

	return 1
	`,
)

func (rb *redisBackend) DeleteWorkflow(ctx context.Context, id string) error {
	deleted, err := deleteWorkflowCmd.Run(ctx, rb.rdb, []string{
		workflowKey(rb.keyPrefix(), id),
		workflowExecutionsKey(rb.keyPrefix(), id),
	},
		executionKey(rb.keyPrefix(), ""),
		workspaceWorkflowsKey(rb.keyPrefix(), ""),
		id,
	).Int()
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}

	if deleted == 0 {
		return backend.ErrWorkflowNotFound
	}

	return nil
}

// Record one settled execution in the stats of a workflow
// KEYS[1] - workflow key
// ARGV[1] - 1 for success, 0 for failure
// ARGV[2] - duration in nanoseconds
// ARGV[3] - settlement time in unix nanoseconds
var incrementStatsCmd = redis.NewScript(
	`if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end

	local count = redis.call("HINCRBY", KEYS[1], "execution_count", 1)
	if ARGV[1] == "1" then
		redis.call("HINCRBY", KEYS[1], "success_count", 1)
	else
		redis.call("HINCRBY", KEYS[1], "failure_count", 1)
	end

	local total = redis.call("HINCRBY", KEYS[1], "total_execution_time", ARGV[2])
	redis.call("HSET", KEYS[1],
		"average_execution_time", string.format("%.0f", math.floor(total / count)),
		"last_executed_at", ARGV[3])

	return 1
	`,
)

func (rb *redisBackend) IncrementWorkflowStats(ctx context.Context, workflowID string, delta backend.StatsDelta) error {
	success := "0"
	if delta.Success {
		success = "1"
	}

	updated, err := incrementStatsCmd.Run(ctx, rb.rdb, []string{workflowKey(rb.keyPrefix(), workflowID)},
		success,
		int64(delta.Duration),
		delta.ExecutedAt.UnixNano(),
	).Int()
	if err != nil {
		return fmt.Errorf("incrementing workflow stats: %w", err)
	}

	if updated == 0 {
		return backend.ErrWorkflowNotFound
	}

	return nil
}
