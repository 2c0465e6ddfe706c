package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type testComponent struct {
	name      string
	startErr  error
	stopErr   error
	events    *[]string
	startCall int
	stopCall  int
}

func (c *testComponent) Start(ctx context.Context) error {
	_ = ctx
	c.startCall++
	if c.events != nil {
		*c.events = append(*c.events, "start:"+c.name)
	}
	return c.startErr
}

func (c *testComponent) Stop(ctx context.Context) error {
	_ = ctx
	c.stopCall++
	if c.events != nil {
		*c.events = append(*c.events, "stop:"+c.name)
	}
	return c.stopErr
}

func TestRuntimeStartStopOrder(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 6)
	sweep := &testComponent{name: "sweep", events: &events}
	gate := &testComponent{name: "gate", events: &events}

	runtime := NewRuntime(sweep, gate)
	if err := runtime.Start(context.Background()); err != nil {
		t.Fatalf("start runtime: %v", err)
	}
	if err := runtime.Stop(context.Background()); err != nil {
		t.Fatalf("stop runtime: %v", err)
	}

	expected := []string{"start:sweep", "start:gate", "stop:gate", "stop:sweep"}
	if !reflect.DeepEqual(events, expected) {
		t.Fatalf("unexpected order: got %v want %v", events, expected)
	}
}

func TestRuntimeStartFailureStopsStartedComponents(t *testing.T) {
	t.Parallel()

	events := make([]string, 0, 4)
	startErr := errors.New("boom")
	first := &testComponent{name: "first", events: &events}
	second := &testComponent{name: "second", events: &events, startErr: startErr}
	third := &testComponent{name: "third", events: &events}

	runtime := NewRuntime(first, second, third)
	err := runtime.Start(context.Background())
	if err == nil {
		t.Fatalf("expected start error")
	}
	if !errors.Is(err, startErr) {
		t.Fatalf("unexpected start error: %v", err)
	}

	if first.stopCall != 1 {
		t.Fatalf("expected started component to be stopped once, got %d", first.stopCall)
	}
	if second.stopCall != 0 || third.stopCall != 0 {
		t.Fatalf("unexpected stop calls: second=%d third=%d", second.stopCall, third.stopCall)
	}
}
