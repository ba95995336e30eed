package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it is held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Prefix is prepended to every key. Default: "ekg"
	Prefix string

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration
}

// RedisJournal implements Journal using go-redis/v9.
type RedisJournal struct {
	client *redis.Client
	prefix string
}

// NewRedisJournal connects to Redis and verifies the connection.
func NewRedisJournal(opts RedisOptions) (*RedisJournal, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Prefix == "" {
		opts.Prefix = "ekg"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisJournal{client: client, prefix: opts.Prefix}, nil
}

// Acquire takes the run lock with SETNX semantics.
func (j *RedisJournal) Acquire(ctx context.Context, runID string, ttl time.Duration) error {
	ok, err := j.client.SetNX(ctx, j.key("lock"), runID, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if ok {
		return nil
	}

	holder, err := j.client.Get(ctx, j.key("lock")).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read run lock: %w", err)
	}
	return fmt.Errorf("%w: held by %s", ErrRunLocked, holder)
}

// Release deletes the lock if runID holds it.
func (j *RedisJournal) Release(ctx context.Context, runID string) error {
	if err := releaseScript.Run(ctx, j.client, []string{j.key("lock")}, runID).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Record pushes the event onto the run's list, publishes it on the run's
// channel and updates the run summary.
func (j *RedisJournal) Record(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := j.client.LPush(ctx, j.key("run", ev.RunID, "events"), data).Err(); err != nil {
		return fmt.Errorf("failed to record event for run %s: %w", ev.RunID, err)
	}
	if err := j.client.Publish(ctx, j.key("runs", ev.RunID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event for run %s: %w", ev.RunID, err)
	}

	summary := map[string]string{
		"status":  status(ev.Kind),
		"updated": ev.Time.Format(time.RFC3339Nano),
	}
	if ev.Phase != "" {
		summary["phase"] = ev.Phase
	}
	if ev.Error != "" {
		summary["error"] = ev.Error
	}
	args := make([]interface{}, 0, len(summary)*2)
	for k, v := range summary {
		args = append(args, k, v)
	}
	if err := j.client.HSet(ctx, j.key("run", ev.RunID), args...).Err(); err != nil {
		return fmt.Errorf("failed to update summary for run %s: %w", ev.RunID, err)
	}
	return nil
}

// Events returns a run's events, oldest first.
func (j *RedisJournal) Events(ctx context.Context, runID string) ([]Event, error) {
	raw, err := j.client.LRange(ctx, j.key("run", runID, "events"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events for run %s: %w", runID, err)
	}

	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	// LPUSH stores newest first
	slices.Reverse(events)
	return events, nil
}

// Summary returns the run summary hash.
func (j *RedisJournal) Summary(ctx context.Context, runID string) (map[string]string, error) {
	summary, err := j.client.HGetAll(ctx, j.key("run", runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read summary for run %s: %w", runID, err)
	}
	return summary, nil
}

// Ping checks the connection.
func (j *RedisJournal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (j *RedisJournal) Close() error {
	return j.client.Close()
}

func (j *RedisJournal) key(parts ...string) string {
	return j.prefix + ":" + strings.Join(parts, ":")
}

func status(k Kind) string {
	switch k {
	case KindRunFinished:
		return "succeeded"
	case KindRunFailed:
		return "failed"
	default:
		return "running"
	}
}
