package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/workflow"
	"github.com/redis/go-redis/v9"
)

func decodeTemplate(fields map[string]string) (*workflow.Template, error) {
	var t workflow.Template
	if err := json.Unmarshal([]byte(fields[fieldData]), &t); err != nil {
		return nil, fmt.Errorf("unmarshaling template: %w", err)
	}

	t.UsageCount = 0
	if v, ok := fields[fieldTemplateUsage]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %v: %w", fieldTemplateUsage, err)
		}

		t.UsageCount = n
	}

	return &t, nil
}

func (rb *redisBackend) GetTemplate(ctx context.Context, id string) (*workflow.Template, error) {
	fields, err := rb.rdb.HGetAll(ctx, templateKey(rb.keyPrefix(), id)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}

	if len(fields) == 0 {
		return nil, backend.ErrTemplateNotFound
	}

	return decodeTemplate(fields)
}

func (rb *redisBackend) ListTemplates(ctx context.Context, filter workflow.TemplateFilter) ([]*workflow.Template, error) {
	ids, err := rb.rdb.SMembers(ctx, templatesKey(rb.keyPrefix())).Result()
	if err != nil {
		return nil, fmt.Errorf("reading template index: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	if _, err := rb.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			cmds = append(cmds, p.HGetAll(ctx, templateKey(rb.keyPrefix(), id)))
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}

	templates := make([]*workflow.Template, 0, len(cmds))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}

		t, err := decodeTemplate(cmd.Val())
		if err != nil {
			return nil, err
		}

		if filter.Match(t) {
			templates = append(templates, t)
		}
	}

	sort.Slice(templates, func(i, j int) bool {
		a, b := templates[i], templates[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}

		if a.Name != b.Name {
			return a.Name < b.Name
		}

		return a.ID < b.ID
	})

	return templates, nil
}

func (rb *redisBackend) CreateTemplate(ctx context.Context, t *workflow.Template) error {
	key := templateKey(rb.keyPrefix(), t.ID)

	c := *t
	c.CreatedAt = c.CreatedAt.UTC()
	c.UsageCount = 0

	data, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshaling template: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}

		if exists == 1 {
			return fmt.Errorf("template %q: %w", t.ID, backend.ErrAlreadyExists)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, fieldData, string(data), fieldTemplateUsage, t.UsageCount)
			p.SAdd(ctx, templatesKey(rb.keyPrefix()), t.ID)
			return nil
		})

		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := rb.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if errors.Is(err, backend.ErrAlreadyExists) {
			return err
		}

		return fmt.Errorf("creating template: %w", err)
	}

	return fmt.Errorf("creating template %q: too many concurrent modifications", t.ID)
}

// Increment the usage count of an existing template
// KEYS[1] - template key
var incrementTemplateUsageCmd = redis.NewScript(
	`if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end

	redis.call("HINCRBY", KEYS[1], "usage_count", 1)

	return 1
	`,
)

func (rb *redisBackend) IncrementTemplateUsage(ctx context.Context, id string) error {
	updated, err := incrementTemplateUsageCmd.Run(ctx, rb.rdb, []string{templateKey(rb.keyPrefix(), id)}).Int()
	if err != nil {
		return fmt.Errorf("incrementing template usage: %w", err)
	}

	if updated == 0 {
		return backend.ErrTemplateNotFound
	}

	return nil
}
