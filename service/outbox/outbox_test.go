package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu    sync.Mutex
	tasks []Task
	fail  int // fail the first n pushes
	seen  chan struct{}
}

func (s *recordingSink) Push(ctx context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("transient")
	}
	s.tasks = append(s.tasks, task)
	if s.seen != nil {
		s.seen <- struct{}{}
	}
	return nil
}

func (s *recordingSink) all() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

func TestQueueDelivers(t *testing.T) {
	sink := &recordingSink{seen: make(chan struct{}, 2)}
	q := New(sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("api_key", "1", "upsert")
	q.Enqueue("conversation", "abc", "delete")

	for i := 0; i < 2; i++ {
		select {
		case <-sink.seen:
		case <-time.After(5 * time.Second):
			t.Fatal("task not delivered")
		}
	}

	tasks := sink.all()
	if len(tasks) != 2 {
		t.Fatalf("tasks=%v", tasks)
	}
	if tasks[0].Entity != "api_key" || tasks[0].Op != "upsert" {
		t.Fatalf("task=%+v", tasks[0])
	}
	if tasks[1].ID != "abc" || tasks[1].Op != "delete" {
		t.Fatalf("task=%+v", tasks[1])
	}
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	sink := &recordingSink{fail: 2, seen: make(chan struct{}, 1)}
	q := New(sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("message", "m1", "upsert")

	select {
	case <-sink.seen:
	case <-time.After(30 * time.Second):
		t.Fatal("task never delivered after retries")
	}
	if got := sink.all(); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("tasks=%v", got)
	}
}

func TestEnqueueNeverBlocksWhenFull(t *testing.T) {
	q := New(NopSink{}, nil)
	// No worker running: fill the buffer past capacity.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			q.Enqueue("api_key", "x", "upsert")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue blocked on a full buffer")
	}
}
