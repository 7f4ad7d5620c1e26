package process

import (
	"context"
	"testing"
	"time"
)

func TestRunRejectsUnlistedCommand(t *testing.T) {
	r := NewRunner(0, 0, "echo")
	_, err := r.Run(context.Background(), Spec{
		Argv: []string{"rm", "-rf", "/"},
	})
	if err == nil {
		t.Fatal("expected error for command outside allow-list")
	}
}

func TestRunEchoSucceeds(t *testing.T) {
	r := NewRunner(0, 0, "echo")
	result, err := r.Run(context.Background(), Spec{
		Argv:    []string{"echo", "hello"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", result.ExitCode)
	}
	if result.Cancelled || result.TimedOut {
		t.Fatalf("did not expect cancellation or timeout")
	}
}

func TestRunTimesOut(t *testing.T) {
	r := NewRunner(0, 0, "sleep")
	result, err := r.Run(context.Background(), Spec{
		Argv:    []string{"sleep", "5"},
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TimedOut {
		t.Fatalf("expected timed_out=true")
	}
}

func TestRunCancellation(t *testing.T) {
	r := NewRunner(0, 0, "sleep")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	result, err := r.Run(ctx, Spec{
		Argv: []string{"sleep", "5"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Cancelled {
		t.Fatalf("expected cancelled=true")
	}
}

func TestRingBufferTruncatesOldestContent(t *testing.T) {
	rb := newRingBuffer(8)
	_, _ = rb.Write([]byte("abcdefgh"))
	_, _ = rb.Write([]byte("ij"))
	if rb.String() == "abcdefghij" {
		t.Fatal("expected overflow marker, got raw concatenation")
	}
	if !rb.overflow {
		t.Fatal("expected overflow flag set")
	}
}
