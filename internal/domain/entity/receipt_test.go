package entity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReceipt_Deliver(t *testing.T) {
	r := NewReceipt("id/0")
	r.Deliver()

	id, err := r.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "id/0" {
		t.Fatalf("Wait() = %q, want id/0", id)
	}
	if err := r.Delivered(context.Background()); err != nil {
		t.Fatalf("Delivered() = %v, want nil", err)
	}
}

func TestReceipt_AcceptThenReject(t *testing.T) {
	boom := errors.New("shutting down")
	r := NewReceipt("id/1")
	r.Accept()
	r.Reject(boom)

	if _, err := r.Wait(context.Background()); err != nil {
		t.Fatalf("accepted receipt should stay accepted, got %v", err)
	}
	if err := r.Delivered(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Delivered() = %v, want %v", err, boom)
	}
}

func TestReceipt_RejectedReceipt(t *testing.T) {
	boom := errors.New("queue full")
	r := RejectedReceipt("id/2", boom)

	if _, err := r.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Wait() error = %v, want %v", err, boom)
	}
	if err := r.Delivered(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Delivered() error = %v, want %v", err, boom)
	}
	select {
	case <-r.Done():
	default:
		t.Fatal("Done() should be closed")
	}
}

func TestReceipt_WaitRespectsContext(t *testing.T) {
	r := NewReceipt("id/3")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want DeadlineExceeded", err)
	}
}
