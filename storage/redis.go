package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/autosave-fi/autosave/internal/types"
)

const (
	planCacheKey     = "autosave:plans"
	cursorKey        = "autosave:cursor"
	historyKeyPrefix = "autosave:history:"
)

var _ SchedulerStorage = (*RedisStorage)(nil)

// RedisStorage is the relayer's durable local state. Plans are mirrored in a
// hash keyed by plan id so re-discovery of an already-cached plan is a no-op
// overwrite, execution history is an append-only list per plan and the
// discovery cursor is a single integer key.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(opt *redis.Options) (*RedisStorage, error) {
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStorage{client: client}, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func (r *RedisStorage) UpsertPlan(ctx context.Context, plan types.Plan) error {
	buf, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := r.client.HSet(ctx, planCacheKey, plan.ID, buf).Err(); err != nil {
		return fmt.Errorf("failed to cache plan: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetCachedPlan(ctx context.Context, id string) (types.Plan, error) {
	raw, err := r.client.HGet(ctx, planCacheKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return types.Plan{}, types.ErrPlanNotFound
	}
	if err != nil {
		return types.Plan{}, fmt.Errorf("failed to read cached plan: %w", err)
	}

	var plan types.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return types.Plan{}, fmt.Errorf("failed to unmarshal cached plan: %w", err)
	}
	return plan, nil
}

func (r *RedisStorage) ListCachedPlans(ctx context.Context) ([]types.Plan, error) {
	raw, err := r.client.HGetAll(ctx, planCacheKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cached plans: %w", err)
	}

	plans := make([]types.Plan, 0, len(raw))
	for id, buf := range raw {
		var plan types.Plan
		if err := json.Unmarshal([]byte(buf), &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached plan %s: %w", id, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (r *RedisStorage) AppendExecution(ctx context.Context, record types.ExecutionRecord) error {
	buf, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}
	if err := r.client.RPush(ctx, historyKeyPrefix+record.PlanID, buf).Err(); err != nil {
		return fmt.Errorf("failed to append execution record: %w", err)
	}
	return nil
}

func (r *RedisStorage) ExecutionHistory(ctx context.Context, planID string, take int, skip int) (types.ExecutionHistoryList, error) {
	key := historyKeyPrefix + planID

	total, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return types.ExecutionHistoryList{}, fmt.Errorf("failed to read history length: %w", err)
	}

	raw, err := r.client.LRange(ctx, key, int64(skip), int64(skip+take-1)).Result()
	if err != nil {
		return types.ExecutionHistoryList{}, fmt.Errorf("failed to read history: %w", err)
	}

	records := make([]types.ExecutionRecord, 0, len(raw))
	for _, buf := range raw {
		var record types.ExecutionRecord
		if err := json.Unmarshal([]byte(buf), &record); err != nil {
			return types.ExecutionHistoryList{}, fmt.Errorf("failed to unmarshal execution record: %w", err)
		}
		records = append(records, record)
	}

	return types.ExecutionHistoryList{
		Records:    records,
		TotalCount: int(total),
	}, nil
}

func (r *RedisStorage) Cursor(ctx context.Context) (uint64, error) {
	raw, err := r.client.Get(ctx, cursorKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}

	cursor, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt cursor value %q: %w", raw, err)
	}
	return cursor, nil
}

func (r *RedisStorage) SetCursor(ctx context.Context, height uint64) error {
	if err := r.client.Set(ctx, cursorKey, strconv.FormatUint(height, 10), 0).Err(); err != nil {
		return fmt.Errorf("failed to persist cursor: %w", err)
	}
	return nil
}
