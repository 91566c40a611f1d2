package dial

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAllOfSucceedsWhenAllReady(t *testing.T) {
	a := make(chan struct{})
	b := make(chan struct{})
	close(a)
	close(b)

	err := allOf(context.Background(), waitSignal(a, nil), waitSignal(b, nil))
	if err != nil {
		t.Fatalf("allOf: %v", err)
	}
}

func TestAllOfReturnsFirstFailure(t *testing.T) {
	ready := make(chan struct{})
	fail := make(chan error, 1)
	wantErr := errors.New("boom")
	fail <- wantErr

	err := allOf(context.Background(), waitSignal(ready, fail))
	if !errors.Is(err, wantErr) {
		t.Fatalf("allOf: got %v, want %v", err, wantErr)
	}
}

func TestAllOfCancelledByContext(t *testing.T) {
	never := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := allOf(ctx, waitSignal(never, nil))
	if err == nil {
		t.Fatal("expected a context-deadline error, got nil")
	}
}
