// Package outbox decouples local state mutations from remote mirroring.
// Stores commit locally, enqueue a task here and move on; a worker pushes
// tasks to the configured sink with backoff. Sync failures are logged and
// dropped, never rolled back into local state.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Task identifies one changed entity.
type Task struct {
	Entity string    // "api_key", "conversation", "message", "preference"
	ID     string
	Op     string    // "upsert" or "delete"
	At     time.Time
}

// Sink receives tasks, typically a remote database client. Implementations
// must be safe for use from a single worker goroutine.
type Sink interface {
	Push(ctx context.Context, task Task) error
}

// NopSink drops everything; used when no remote mirror is configured.
type NopSink struct{}

func (NopSink) Push(context.Context, Task) error { return nil }

type Queue struct {
	ch   chan Task
	sink Sink
	log  *slog.Logger
}

func New(sink Sink, log *slog.Logger) *Queue {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		ch:   make(chan Task, 256),
		sink: sink,
		log:  log,
	}
}

// Enqueue never blocks. When the buffer is full the task is dropped with a
// log line; the local commit already happened and must not be held up.
func (q *Queue) Enqueue(entity, id, op string) {
	task := Task{Entity: entity, ID: id, Op: op, At: time.Now()}
	select {
	case q.ch <- task:
	default:
		q.log.Warn("outbox full, dropping sync task", "entity", entity, "id", id, "op", op)
	}
}

// Run drains the queue until ctx is done. Each task is retried with
// exponential backoff; on final failure it is dropped with a log line.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.ch:
			q.push(ctx, task)
		}
	}
}

func (q *Queue) push(ctx context.Context, task Task) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.Retry(func() error {
		return q.sink.Push(ctx, task)
	}, policy)
	if err != nil {
		q.log.Error("sync task failed, dropping", "entity", task.Entity, "id", task.ID, "error", err)
	}
}
