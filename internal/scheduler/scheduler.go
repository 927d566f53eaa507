// Package scheduler runs the fixed, ordered per-frame task pipeline:
// capture, smoothing, beat/pitch/idle detection, mapping, and light
// rendering all execute as Tasks against one shared Board every tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
)

// Task is one stage of the per-frame pipeline. Setup/Teardown bracket
// the task's lifetime; Run executes once per frame against the shared
// Board. A Run error does not stop the pipeline — later tasks still
// see whatever the Board held before the failure.
type Task interface {
	Name() string
	Setup(ctx context.Context) error
	Run(ctx context.Context, bb *blackboard.Board) error
	Teardown(ctx context.Context) error
}

// Factory constructs a fresh Task instance from the same construction
// arguments a failed task was originally built with, so a restart is
// indistinguishable from first startup.
type Factory func() Task

type entry struct {
	factory     Factory
	task        Task
	consecutive int
}

// Scheduler runs a fixed ordered task list on a ticker, isolating each
// task's failures from the rest of the pipeline and restarting a task
// that fails too many frames in a row.
type Scheduler struct {
	log           *slog.Logger
	frameInterval time.Duration
	maxFailures   int
	now           func() time.Time

	mu       sync.Mutex
	entries  []*entry
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// New builds a Scheduler that ticks at frameInterval. maxFailures is
// the number of consecutive Run failures a task tolerates before it is
// torn down and rebuilt from its Factory; 0 disables restarts.
func New(log *slog.Logger, frameInterval time.Duration, maxFailures int) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		log:           log,
		frameInterval: frameInterval,
		maxFailures:   maxFailures,
		now:           time.Now,
	}
}

// Register appends a task to the pipeline, in the order tasks will run
// every frame, and calls its Setup immediately.
func (s *Scheduler) Register(ctx context.Context, factory Factory) error {
	task := factory()
	if err := task.Setup(ctx); err != nil {
		return fmt.Errorf("scheduler: setup %s: %w", task.Name(), err)
	}
	s.mu.Lock()
	s.entries = append(s.entries, &entry{factory: factory, task: task})
	s.mu.Unlock()
	return nil
}

// Run drives the frame loop until ctx is cancelled or Shutdown is
// called, then tears every task down in reverse registration order.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()
	defer close(s.doneChan)

	for {
		select {
		case <-ctx.Done():
			return s.teardownAll(ctx)
		case <-s.stopChan:
			return s.teardownAll(ctx)
		case <-ticker.C:
			s.runFrame(ctx)
		}
	}
}

// Shutdown stops the frame loop and waits for teardown to finish.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}

func (s *Scheduler) runFrame(ctx context.Context) {
	bb := blackboard.New(s.now())

	s.mu.Lock()
	entries := s.entries
	s.mu.Unlock()

	for _, e := range entries {
		s.runTask(ctx, e, bb)
	}
}

// runTask executes one task with panic and error isolation: a panic is
// recovered and logged exactly like a returned error, and neither stops
// the rest of the frame's task list.
func (s *Scheduler) runTask(ctx context.Context, e *entry, bb *blackboard.Board) {
	err := s.safeRun(ctx, e.task, bb)
	if err == nil {
		e.consecutive = 0
		return
	}

	e.consecutive++
	s.log.Error("task failed", "task", e.task.Name(), "error", err, "consecutive", e.consecutive)

	if s.maxFailures > 0 && e.consecutive >= s.maxFailures {
		s.restart(ctx, e)
	}
}

func (s *Scheduler) safeRun(ctx context.Context, task Task, bb *blackboard.Board) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx, bb)
}

// restart tears down a repeatedly-failing task and rebuilds it from its
// Factory, as if it were starting up for the first time.
func (s *Scheduler) restart(ctx context.Context, e *entry) {
	s.log.Warn("restarting task after repeated failures", "task", e.task.Name())
	if err := e.task.Teardown(ctx); err != nil {
		s.log.Error("teardown during restart failed", "task", e.task.Name(), "error", err)
	}

	fresh := e.factory()
	if err := fresh.Setup(ctx); err != nil {
		s.log.Error("restart setup failed, task remains down", "task", fresh.Name(), "error", err)
		return
	}
	e.task = fresh
	e.consecutive = 0
}

func (s *Scheduler) teardownAll(ctx context.Context) error {
	s.mu.Lock()
	entries := s.entries
	s.mu.Unlock()

	var firstErr error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].task.Teardown(ctx); err != nil {
			s.log.Error("teardown failed", "task", entries[i].task.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
