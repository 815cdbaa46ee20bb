package executor

import (
	"context"
	"testing"
	"time"

	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/logger"
)

func TestRun_PreservesTaskOrder(t *testing.T) {
	pool := New(4, logger.Default())
	tasks := []Task{
		{Name: "c", Run: func(ctx context.Context) detect.Report { return detect.Report{Name: "c", Score: 0.3} }},
		{Name: "a", Run: func(ctx context.Context) detect.Report {
			time.Sleep(10 * time.Millisecond)
			return detect.Report{Name: "a", Score: 0.1}
		}},
		{Name: "b", Run: func(ctx context.Context) detect.Report { return detect.Report{Name: "b", Score: 0.2} }},
	}

	results := pool.Run(context.Background(), tasks)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	want := []string{"c", "a", "b"}
	for i, name := range want {
		if results[i].Name != name {
			t.Fatalf("results[%d].Name = %q, want %q", i, results[i].Name, name)
		}
	}
}

func TestRun_PanicIsolation(t *testing.T) {
	pool := New(2, logger.Default())
	tasks := []Task{
		{Name: "panics", Run: func(ctx context.Context) detect.Report {
			panic("boom")
		}},
		{Name: "fine", Run: func(ctx context.Context) detect.Report {
			return detect.Report{Name: "fine", Score: 0.4}
		}},
	}

	results := pool.Run(context.Background(), tasks)

	if !results[0].TerminalError {
		t.Fatalf("panicking task should yield TerminalError, got %+v", results[0])
	}
	if results[0].Score != 0.5 {
		t.Fatalf("panicking task score = %v, want 0.5", results[0].Score)
	}
	if results[1].TerminalError {
		t.Fatalf("sibling task should not be affected by panic: %+v", results[1])
	}
	if results[1].Score != 0.4 {
		t.Fatalf("sibling task score = %v, want 0.4", results[1].Score)
	}
}

func TestRun_DeadlineExceeded(t *testing.T) {
	pool := New(2, logger.Default())
	tasks := []Task{
		{Name: "slow", Deadline: 5 * time.Millisecond, Run: func(ctx context.Context) detect.Report {
			select {
			case <-time.After(time.Second):
				return detect.Report{Name: "slow", Score: 0}
			case <-ctx.Done():
				return detect.Neutral("slow", ctx.Err())
			}
		}},
	}

	results := pool.Run(context.Background(), tasks)
	if !results[0].TerminalError {
		t.Fatalf("slow task exceeding its deadline should be TerminalError, got %+v", results[0])
	}
}

func TestRun_ContextCancelledWhileWaitingForSlot(t *testing.T) {
	pool := New(1, logger.Default())

	// Occupy the pool's only slot so the second task has to wait on the
	// semaphore, then cancel before it ever gets a turn.
	holderStarted := make(chan struct{})
	releaseHolder := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	go pool.Run(context.Background(), []Task{
		{Name: "holder", Run: func(ctx context.Context) detect.Report {
			close(holderStarted)
			<-releaseHolder
			return detect.Report{Name: "holder", Score: 0}
		}},
	})
	<-holderStarted

	waiterDone := make(chan []detect.Report, 1)
	go func() {
		waiterDone <- pool.Run(ctx, []Task{
			{Name: "never-runs", Run: func(ctx context.Context) detect.Report {
				return detect.Report{Name: "never-runs", Score: 0}
			}},
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	results := <-waiterDone
	close(releaseHolder)

	if !results[0].TerminalError {
		t.Fatalf("task whose context is cancelled while queued should be TerminalError, got %+v", results[0])
	}
}
