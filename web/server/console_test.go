package server

import (
	"fmt"
	"testing"
	"time"
)

func TestConsole_SplitsLines(t *testing.T) {
	console := NewConsole(10)

	fmt.Fprint(console, "first line\nsecond ")
	fmt.Fprint(console, "line\n\nthird\r\n")

	messages := console.Messages()
	want := []string{"first line", "second line", "third"}
	if len(messages) != len(want) {
		t.Fatalf("Expected %d messages, got %d: %+v", len(want), len(messages), messages)
	}
	for i, msg := range messages {
		if msg.Message != want[i] {
			t.Errorf("Message %d: expected %q, got %q", i, want[i], msg.Message)
		}
		if time.Since(msg.Timestamp) > time.Second {
			t.Errorf("Timestamp seems too old: %v", msg.Timestamp)
		}
	}
}

func TestConsole_HistoryLimit(t *testing.T) {
	console := NewConsole(3)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(console, "Message %d\n", i)
	}

	messages := console.Messages()
	if len(messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(messages))
	}
	if messages[0].Message != "Message 3" || messages[2].Message != "Message 5" {
		t.Errorf("Expected messages 3..5, got %+v", messages)
	}
}

func TestConsole_Subscribe(t *testing.T) {
	console := NewConsole(10)
	ch, unsubscribe := console.Subscribe(10)

	messages := []string{"Message 1", "Message 2", "Message 3"}
	for _, msg := range messages {
		fmt.Fprintln(console, msg)
	}

	timeout := time.After(200 * time.Millisecond)
	for i, want := range messages {
		select {
		case msg := <-ch:
			if msg.Message != want {
				t.Errorf("Message %d: expected %q, got %q", i, want, msg.Message)
			}
		case <-timeout:
			t.Fatalf("Timeout waiting for message %d", i+1)
		}
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed after unsubscribe")
	}
	fmt.Fprintln(console, "after unsubscribe")
}

func TestConsole_SlowSubscriberDoesNotBlock(t *testing.T) {
	console := NewConsole(100)
	_, unsubscribe := console.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			fmt.Fprintf(console, "Message %d\n", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Writer blocked on a full subscriber")
	}
	if got := len(console.Messages()); got != 50 {
		t.Errorf("Expected 50 remembered messages, got %d", got)
	}
}
