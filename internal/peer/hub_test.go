package peer

import (
	"testing"
	"time"

	"github.com/peerchat-io/peerchat/internal/protocol"
)

// TestNewHub verifies that NewHub returns a properly initialized hub whose
// registration channel accepts a nil client without blocking.
func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}

	go hub.Run()
	defer func() { _ = hub.Shutdown(time.Second) }()

	select {
	case hub.register <- nil:
	case <-time.After(100 * time.Millisecond):
		t.Error("Failed to send nil registration to running hub")
	}
}

// TestHubNotifyDoesNotBlock verifies that Notify never blocks the caller,
// even with no attached clients and a saturated queue.
func TestHubNotifyDoesNotBlock(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Notify(protocol.Message{Seq: int64(i + 1), SenderID: "peer-2", Body: "m"})
		}
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Notify blocked with no running hub")
	}
}

// TestHubRunStartsWithoutPanic verifies that the hub's event loop starts and
// runs briefly without runtime errors.
func TestHubRunStartsWithoutPanic(t *testing.T) {
	hub := NewHub()

	done := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Hub.Run() panicked: %v", r)
			}
			done <- true
		}()
		go hub.Run()
		time.Sleep(10 * time.Millisecond)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Hub.Run() test timed out")
	}
}

// TestHubShutdown verifies that shutdown completes promptly with no clients
// attached.
func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

// TestHubNotifyAfterShutdown verifies that a notification after shutdown is
// dropped rather than deadlocking the sender.
func TestHubNotifyAfterShutdown(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Notify(protocol.Message{Seq: int64(i + 1), SenderID: "peer-2", Body: "m"})
		}
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Notify blocked after shutdown")
	}
}
