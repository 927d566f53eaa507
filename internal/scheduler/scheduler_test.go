package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
)

type countingTask struct {
	name       string
	runs       int32
	failFor    int32 // number of leading Run calls that return an error
	teardownCh chan struct{}
}

func (c *countingTask) Name() string          { return c.name }
func (c *countingTask) Setup(context.Context) error { return nil }
func (c *countingTask) Teardown(context.Context) error {
	if c.teardownCh != nil {
		close(c.teardownCh)
	}
	return nil
}

func (c *countingTask) Run(context.Context, *blackboard.Board) error {
	n := atomic.AddInt32(&c.runs, 1)
	if n <= c.failFor {
		return errors.New("boom")
	}
	return nil
}

func TestRunExecutesTasksInOrderEveryTick(t *testing.T) {
	var order []string
	a := &orderTask{name: "a", record: &order}
	b := &orderTask{name: "b", record: &order}

	s := New(nil, 5*time.Millisecond, 0)
	ctx := context.Background()
	if err := s.Register(ctx, func() Task { return a }); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(ctx, func() Task { return b }); err != nil {
		t.Fatal(err)
	}

	go s.Run(ctx)
	time.Sleep(25 * time.Millisecond)
	s.Shutdown()

	if len(order) < 2 {
		t.Fatalf("expected at least one frame to run, got %d entries", len(order))
	}
	if order[0] != "a" || order[1] != "b" {
		t.Errorf("expected a before b in first frame, got %v", order[:2])
	}
}

type orderTask struct {
	name   string
	record *[]string
}

func (o *orderTask) Name() string                   { return o.name }
func (o *orderTask) Setup(context.Context) error    { return nil }
func (o *orderTask) Teardown(context.Context) error { return nil }
func (o *orderTask) Run(context.Context, *blackboard.Board) error {
	*o.record = append(*o.record, o.name)
	return nil
}

func TestTaskFailureDoesNotStopThePipeline(t *testing.T) {
	var order []string
	failing := &countingTask{name: "failing", failFor: 1000}
	after := &orderTask{name: "after", record: &order}

	s := New(nil, 5*time.Millisecond, 0)
	ctx := context.Background()
	if err := s.Register(ctx, func() Task { return failing }); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(ctx, func() Task { return after }); err != nil {
		t.Fatal(err)
	}

	go s.Run(ctx)
	time.Sleep(20 * time.Millisecond)
	s.Shutdown()

	if len(order) == 0 {
		t.Fatal("expected the task after a failing one to still run")
	}
}

func TestRestartAfterConsecutiveFailures(t *testing.T) {
	teardownCh := make(chan struct{})
	failing := &countingTask{name: "flaky", failFor: 1000, teardownCh: teardownCh}

	s := New(nil, 3*time.Millisecond, 2)
	ctx := context.Background()
	built := 0
	factory := func() Task {
		built++
		if built == 1 {
			return failing
		}
		return &countingTask{name: "flaky"}
	}
	if err := s.Register(ctx, factory); err != nil {
		t.Fatal(err)
	}

	go s.Run(ctx)
	select {
	case <-teardownCh:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected the flaky task to be torn down and restarted")
	}
	s.Shutdown()

	if built < 2 {
		t.Errorf("expected the factory to be called at least twice, got %d", built)
	}
}
