package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time check that RedisRepository implements Repository.
var _ Repository = (*RedisRepository)(nil)

// transitionScript performs the conditional status update atomically on the
// server side: it only rewrites the record if the stored status still equals
// the expected one. KEYS[1] is the record key, ARGV[1] the expected status,
// ARGV[2] the replacement JSON document.
var transitionScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return -1
end
local rec = cjson.decode(raw)
if rec['status'] ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// RedisRepository is a Redis-backed implementation of Repository.
// Records are stored as JSON documents keyed by task ID, and the terminal
// transition is a single Lua script so two pollers can never both win.
type RedisRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisOption configures a RedisRepository.
type RedisOption func(*RedisRepository)

// WithKeyPrefix overrides the default "recast:task:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisRepository) {
		r.keyPrefix = prefix
	}
}

// WithTTL sets an expiry on stored records. Zero means no expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisRepository) {
		r.ttl = ttl
	}
}

// NewRedisRepository creates a Redis-backed task repository.
func NewRedisRepository(client *redis.Client, opts ...RedisOption) *RedisRepository {
	r := &RedisRepository{
		client:    client,
		keyPrefix: "recast:task:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRepository) key(taskID string) string {
	return r.keyPrefix + taskID
}

// Save persists a record as a JSON document.
func (r *RedisRepository) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(rec.TaskID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// FindByTaskID retrieves a record by its task ID.
func (r *RedisRepository) FindByTaskID(ctx context.Context, taskID string) (*Record, error) {
	raw, err := r.client.Get(ctx, r.key(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// Transition performs the conditional status update via a Lua script so the
// check and the write are a single atomic operation on the Redis server.
func (r *RedisRepository) Transition(ctx context.Context, taskID string, from, to Status, up Update) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	rec, err := r.FindByTaskID(ctx, taskID)
	if err != nil {
		return false, err
	}
	if rec.Status != from {
		return false, nil
	}

	rec.Apply(to, up)
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	res, err := transitionScript.Run(ctx, r.client, []string{r.key(taskID)}, string(from), string(data)).Int()
	if err != nil {
		return false, fmt.Errorf("run transition script: %w", err)
	}
	switch res {
	case -1:
		return false, ErrTaskNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}
