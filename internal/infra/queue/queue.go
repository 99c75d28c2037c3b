package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scryhq/ingestor/internal/core/domain"
)

const tasksKey = "ingest:tasks"

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis operations for the ingestion task queue.
//
// Tasks live in a single sorted set scored by their ready-at unix time,
// so delayed redeliveries and immediate submissions share one structure.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new queue client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Enqueue adds a task to the queue, ready after the given delay.
func (c *Client) Enqueue(ctx context.Context, task *domain.Task, delay time.Duration) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	score := float64(time.Now().Add(delay).Unix())
	if err := c.rdb.ZAdd(ctx, tasksKey, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// Dequeue claims the next ready task (lowest score = earliest ready-at).
// Returns found=false when the queue is empty or the head is not ready yet.
func (c *Client) Dequeue(ctx context.Context) (*domain.Task, bool, error) {
	results, err := c.rdb.ZRangeWithScores(ctx, tasksKey, 0, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("zrange failed: %w", err)
	}

	if len(results) == 0 {
		return nil, false, nil
	}

	if int64(results[0].Score) > time.Now().Unix() {
		return nil, false, nil
	}

	member, ok := results[0].Member.(string)
	if !ok {
		return nil, false, fmt.Errorf("unexpected member type %T", results[0].Member)
	}

	// Task IDs are unique, so the member encodes a single claimable entry.
	// A zero removal count means another worker got there first.
	removed, err := c.rdb.ZRem(ctx, tasksKey, member).Result()
	if err != nil {
		return nil, false, fmt.Errorf("zrem failed: %w", err)
	}
	if removed == 0 {
		return nil, false, nil
	}

	var task domain.Task
	if err := json.Unmarshal([]byte(member), &task); err != nil {
		return nil, false, fmt.Errorf("failed to decode task: %w", err)
	}

	return &task, true, nil
}

// Depth returns the number of tasks currently queued, ready or not.
func (c *Client) Depth(ctx context.Context) (int64, error) {
	n, err := c.rdb.ZCard(ctx, tasksKey).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}

// Health checks queue connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
