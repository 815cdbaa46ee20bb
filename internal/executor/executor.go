// Package executor runs the forensic detector set for one request with
// bounded parallelism, per-detector deadlines, and panic isolation.
//
// The concurrency-limiting semaphore is adapted from this codebase
// lineage's CPU-bound resource limiter: a buffered channel sized to
// the available CPU count, shared by every detector task in a single
// request so that concurrent requests cannot multiply the pool.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sevrusik/turthsnapbot/internal/detect"
	"github.com/sevrusik/turthsnapbot/internal/logger"
)

// DefaultDetectorDeadline is the per-detector timeout applied when a
// Task does not specify one, per spec §4.10/§5.
const DefaultDetectorDeadline = 30 * time.Second

// Task is one detector's unit of work. Name must be stable and unique
// within a single Run call; results are returned in Task-slice order
// regardless of completion order.
type Task struct {
	Name     string
	Deadline time.Duration // zero means DefaultDetectorDeadline
	Run      func(ctx context.Context) detect.Report
}

// Pool bounds concurrent detector execution across one request's
// tasks. A Pool is safe for concurrent use by multiple in-flight
// requests; each Run call acquires from the same shared semaphore, so
// the worker pool is never oversubscribed.
type Pool struct {
	sem chan struct{}
	log *logger.Logger
}

// New creates a Pool sized to the available CPU count, or to size if
// size > 0.
func New(size int, log *logger.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Pool{sem: make(chan struct{}, size), log: log}
}

// Run executes every task, each bounded by its own deadline (or
// DefaultDetectorDeadline), constrained to the pool's concurrency cap.
// A task that panics or exceeds its deadline yields a neutral
// terminal-error report for that slot rather than aborting the batch.
// Cancelling ctx propagates to every in-flight task; tasks that have
// not yet acquired a pool slot are skipped and reported as
// terminal-error immediately.
func (p *Pool) Run(ctx context.Context, tasks []Task) []detect.Report {
	results := make([]detect.Report, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			results[i] = p.runOne(ctx, task)
		}(i, task)
	}
	wg.Wait()

	return results
}

func (p *Pool) runOne(ctx context.Context, task Task) detect.Report {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return detect.Neutral(task.Name, ctx.Err())
	}

	deadline := task.Deadline
	if deadline <= 0 {
		deadline = DefaultDetectorDeadline
	}
	taskCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	return p.runIsolated(taskCtx, task)
}

// runIsolated recovers from a panic inside task.Run, turning it into a
// neutral terminal-error report so one misbehaving detector never
// takes down the batch.
func (p *Pool) runIsolated(ctx context.Context, task Task) (report detect.Report) {
	done := make(chan detect.Report, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("executor: detector panicked", "detector", task.Name, "panic", r)
				done <- detect.Neutral(task.Name, fmt.Errorf("panic: %v", r))
				return
			}
		}()
		done <- task.Run(ctx)
	}()

	select {
	case r := <-done:
		if r.Name == "" {
			r.Name = task.Name
		}
		return r
	case <-ctx.Done():
		p.log.Warn("executor: detector deadline exceeded", "detector", task.Name)
		return detect.Neutral(task.Name, ctx.Err())
	}
}
