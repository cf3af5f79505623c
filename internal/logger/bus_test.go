package logger

import (
	"io"
	"testing"
	"time"
)

func TestBus(t *testing.T) {
	t.Run("PublishReachesAllSubscribers", func(t *testing.T) {
		b := NewBus()
		defer b.Close()

		ch1, cancel1 := b.Subscribe()
		ch2, cancel2 := b.Subscribe()
		defer cancel1()
		defer cancel2()

		b.Publish(Event{Level: "info", Message: "hello"})

		for i, ch := range []<-chan Event{ch1, ch2} {
			select {
			case ev := <-ch:
				if ev.Message != "hello" {
					t.Errorf("Subscriber %d: expected hello, got %q", i, ev.Message)
				}
			case <-time.After(time.Second):
				t.Fatalf("Subscriber %d never received the event", i)
			}
		}
	})

	t.Run("SlowSubscriberDropsInsteadOfBlocking", func(t *testing.T) {
		b := NewBus()
		defer b.Close()

		_, cancel := b.Subscribe()
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			// Overflow the subscriber buffer without draining it
			for i := 0; i < subscriberBuffer+50; i++ {
				b.Publish(Event{Message: "m"})
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Publish must never block on a full subscriber")
		}
	})

	t.Run("CancelRemovesSubscriber", func(t *testing.T) {
		b := NewBus()
		defer b.Close()

		ch, cancel := b.Subscribe()
		cancel()
		cancel() // safe twice

		if b.SubscriberCount() != 0 {
			t.Errorf("Expected 0 subscribers, got %d", b.SubscriberCount())
		}
		if _, open := <-ch; open {
			t.Error("Cancelled subscriber channel must be closed")
		}
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		b := NewBus()
		ch, _ := b.Subscribe()

		b.Close()
		b.Close()

		if _, open := <-ch; open {
			t.Error("Close must close subscriber channels")
		}

		// Post-close operations are safe no-ops
		b.Publish(Event{Message: "late"})
		late, _ := b.Subscribe()
		if _, open := <-late; open {
			t.Error("Subscribing after close must return a closed channel")
		}
	})
}

func TestLoggerBusMirror(t *testing.T) {
	log := New("development")
	log.SetOutput(io.Discard)
	defer log.Close()

	events, cancel := log.Events().Subscribe()
	defer cancel()

	log.WithField("scan_id", "scan-1").Info("Scan started")

	select {
	case ev := <-events:
		if ev.Message != "Scan started" {
			t.Errorf("Expected mirrored message, got %q", ev.Message)
		}
		if ev.Level != "info" {
			t.Errorf("Expected info level, got %s", ev.Level)
		}
		if ev.Context["scan_id"] != "scan-1" {
			t.Errorf("Expected scan_id field, got %v", ev.Context)
		}
	case <-time.After(time.Second):
		t.Fatal("Log record never reached the bus")
	}
}
