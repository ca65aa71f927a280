package redis

import (
	"context"
	"fmt"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/metrics"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/internal/metrickeys"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var _ backend.Backend = (*redisBackend)(nil)

// maxTxRetries bounds optimistic WATCH transactions before giving up.
const maxTxRetries = 10

func NewRedisBackend(client redis.UniversalClient, opts ...RedisBackendOption) (*redisBackend, error) {
	// Default options
	options := &RedisOptions{
		Options: backend.ApplyOptions(),
	}

	for _, opt := range opts {
		opt(options)
	}

	rb := &redisBackend{
		rdb:     client,
		options: options,
	}

	// Preload scripts here. go-redis runs EVALSHA first and falls back to EVAL,
	// which does not work inside transactional pipelines.
	ctx := context.Background()
	cmds := map[string]*redis.StringCmd{
		"createEntityCmd":           createEntityCmd.Load(ctx, rb.rdb),
		"deleteWorkflowCmd":         deleteWorkflowCmd.Load(ctx, rb.rdb),
		"incrementStatsCmd":         incrementStatsCmd.Load(ctx, rb.rdb),
		"settleExecutionCmd":        settleExecutionCmd.Load(ctx, rb.rdb),
		"incrementTemplateUsageCmd": incrementTemplateUsageCmd.Load(ctx, rb.rdb),
	}
	for name, cmd := range cmds {
		if cmd.Err() != nil {
			return nil, fmt.Errorf("loading redis script: %v %w", name, cmd.Err())
		}
	}

	return rb, nil
}

type redisBackend struct {
	rdb     redis.UniversalClient
	options *RedisOptions
}

func (rb *redisBackend) keyPrefix() string {
	return rb.options.KeyPrefix
}

func (rb *redisBackend) Metrics() metrics.Client {
	return rb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
}

func (rb *redisBackend) Tracer() trace.Tracer {
	return rb.options.TracerProvider.Tracer(backend.TracerName)
}

func (rb *redisBackend) Options() *backend.Options {
	return &rb.options.Options
}

func (rb *redisBackend) Close() error {
	return rb.rdb.Close()
}

// Create a hash and add it to an index unless the hash already exists
// KEYS[1] - entity hash key
// KEYS[2] - index zset key
// ARGV[1] - index score
// ARGV[2] - index member
// ARGV[3..n] - hash field/value pairs
var createEntityCmd = redis.NewScript(
	`if redis.call("EXISTS", KEYS[1]) == 1 then
		return 0
	end

	redis.call("HSET", KEYS[1], unpack(ARGV, 3))
	redis.call("ZADD", KEYS[2], ARGV[1], ARGV[2])

	return 1
	`,
)

func (rb *redisBackend) createEntity(ctx context.Context, key, indexKey string, score int64, member string, fields ...any) (bool, error) {
	args := append([]any{score, member}, fields...)

	created, err := createEntityCmd.Run(ctx, rb.rdb, []string{key, indexKey}, args...).Int()
	if err != nil {
		return false, err
	}

	return created == 1, nil
}
