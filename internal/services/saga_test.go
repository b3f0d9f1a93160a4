package services

import (
	"context"
	"errors"
	"testing"
)

func TestRunSaga_AllStepsSucceed(t *testing.T) {
	var order []string
	steps := []SagaStep{
		{Name: "a", Run: func(context.Context) error { order = append(order, "a"); return nil }},
		{Name: "b", Run: func(context.Context) error { order = append(order, "b"); return nil }},
	}
	step, err := RunSaga(context.Background(), steps)
	if err != nil || step != "" {
		t.Fatalf("RunSaga = (%q, %v)", step, err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("execution order: %v", order)
	}
}

func TestRunSaga_FailureCompensatesCompletedStepsInReverse(t *testing.T) {
	var events []string
	boom := errors.New("boom")
	steps := []SagaStep{
		{
			Name:       "a",
			Run:        func(context.Context) error { events = append(events, "run-a"); return nil },
			Compensate: func(context.Context) { events = append(events, "undo-a") },
		},
		{
			Name:       "b",
			Run:        func(context.Context) error { events = append(events, "run-b"); return nil },
			Compensate: func(context.Context) { events = append(events, "undo-b") },
		},
		{
			Name: "c",
			Run:  func(context.Context) error { return boom },
		},
	}
	step, err := RunSaga(context.Background(), steps)
	if !errors.Is(err, boom) || step != "c" {
		t.Fatalf("RunSaga = (%q, %v)", step, err)
	}
	want := []string{"run-a", "run-b", "undo-b", "undo-a"}
	if len(events) != len(want) {
		t.Fatalf("events: %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q (%v)", i, events[i], want[i], events)
		}
	}
}

func TestRunSaga_HaltSuppressesCompensation(t *testing.T) {
	var compensated bool
	lost := errors.New("already processed elsewhere")
	steps := []SagaStep{
		{
			Name:       "a",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) { compensated = true },
		},
		{
			Name: "b",
			Run:  func(context.Context) error { return Halt(lost) },
		},
	}
	step, err := RunSaga(context.Background(), steps)
	if !errors.Is(err, lost) || step != "b" {
		t.Fatalf("RunSaga = (%q, %v)", step, err)
	}
	if compensated {
		t.Fatalf("halted saga must not compensate")
	}
}
