package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
	"github.com/scryhq/ingestor/internal/ingest/metrics"
)

// Executor runs a task and reports whether it should be redelivered.
type Executor interface {
	Handle(ctx context.Context, task *domain.Task) (redeliver bool, countdownSeconds int)
}

// WorkerConfig holds configuration for the task worker pool.
type WorkerConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	EmptySleep   time.Duration `yaml:"empty_sleep"`
}

// DefaultWorkerConfig returns default worker pool configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Workers:      4,
		PollInterval: 500 * time.Millisecond,
		EmptySleep:   2 * time.Second,
	}
}

// Worker drains the task queue and dispatches tasks to the executor.
type Worker struct {
	cfg   WorkerConfig
	queue *Client
	exec  Executor
	log   *slog.Logger
}

// NewWorker creates a new task worker pool.
func NewWorker(cfg WorkerConfig, queue *Client, exec Executor) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkerConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultWorkerConfig().PollInterval
	}
	if cfg.EmptySleep <= 0 {
		cfg.EmptySleep = DefaultWorkerConfig().EmptySleep
	}
	return &Worker{
		cfg:   cfg,
		queue: queue,
		exec:  exec,
		log:   slog.Default().With("component", "queue_worker"),
	}
}

// Run starts the worker pool and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting task workers", "workers", w.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}

	go w.trackDepth(ctx)

	wg.Wait()
	w.log.Info("Task workers stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context, id int) {
	log := w.log.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, found, err := w.queue.Dequeue(ctx)
		if err != nil {
			log.Error("Failed to dequeue task", "error", err)
			w.sleep(ctx, w.cfg.EmptySleep)
			continue
		}
		if !found {
			w.sleep(ctx, w.cfg.PollInterval)
			continue
		}

		w.process(ctx, log, task)
	}
}

func (w *Worker) process(ctx context.Context, log *slog.Logger, task *domain.Task) {
	log.Info("Processing task",
		"task_id", task.ID,
		"adapter", task.AdapterType,
		"attempt", task.Attempt)

	redeliver, countdown := w.exec.Handle(ctx, task)
	if !redeliver {
		return
	}

	next := &domain.Task{
		ID:            task.ID,
		AdapterType:   task.AdapterType,
		SourceConfig:  task.SourceConfig,
		CorrelationID: task.CorrelationID,
		Attempt:       task.Attempt + 1,
	}
	delay := time.Duration(countdown) * time.Second
	if err := w.queue.Enqueue(ctx, next, delay); err != nil {
		log.Error("Failed to redeliver task", "task_id", task.ID, "error", err)
		return
	}

	metrics.TasksRedelivered.WithLabelValues(task.AdapterType).Inc()
	log.Info("Task redelivered",
		"task_id", task.ID,
		"attempt", next.Attempt,
		"countdown_seconds", countdown)
}

// trackDepth periodically exports the queue depth gauge.
func (w *Worker) trackDepth(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := w.queue.Depth(ctx)
			if err != nil {
				w.log.Warn("Failed to read queue depth", "error", err)
				continue
			}
			metrics.QueueDepth.Set(float64(depth))
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
