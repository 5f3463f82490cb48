package serialmux

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()
	if id1 == id2 {
		t.Fatalf("Expected unique subscriber IDs, got %q twice", id1)
	}
	if len(mux.subscribers) != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", len(mux.subscribers))
	}

	mux.Unsubscribe(id1)
	if len(mux.subscribers) != 1 {
		t.Fatalf("Expected 1 subscriber after unsubscribe, got %d", len(mux.subscribers))
	}
	if _, ok := <-ch1; ok {
		t.Error("Expected unsubscribed channel to be closed")
	}

	// Unsubscribing an unknown ID is a no-op.
	mux.Unsubscribe("nonexistent")
	if len(mux.subscribers) != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", len(mux.subscribers))
	}

	mux.Unsubscribe(id2)
	if _, ok := <-ch2; ok {
		t.Error("Expected unsubscribed channel to be closed")
	}
}

func TestSendCommandAppendsNewline(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("FJ"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if got := string(port.GetWrittenData()); got != "FJ\n" {
		t.Errorf("Written data = %q, want %q", got, "FJ\n")
	}

	port.Reset()
	if err := mux.SendCommand("SD1\n"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if got := string(port.GetWrittenData()); got != "SD1\n" {
		t.Errorf("Written data = %q, want %q (no double newline)", got, "SD1\n")
	}
}

func TestSendCommandWriteError(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteError = ErrWriteFailed
	mux := NewSerialMux(port)

	if err := mux.SendCommand("FJ"); err == nil {
		t.Error("Expected error from failing write")
	}
}

func TestInitializeSendsStartCommands(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	written := string(port.GetWrittenData())
	for _, want := range []string{"T=", "FJ\n", "SD1\n", "SB1\n", "SS30\n"} {
		if !strings.Contains(written, want) {
			t.Errorf("Initialize output missing %q, got %q", want, written)
		}
	}
}

func TestMonitorDeliversLines(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	line := `{"class":"car","cx":410,"cy":212,"w":180,"h":95}`
	port.AddReadData([]byte(line + "\n"))

	select {
	case got := <-ch:
		if got != line {
			t.Errorf("Received %q, want %q", got, line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for line delivery")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Monitor returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Monitor to exit")
	}
}

func TestMonitorSkipsBlockedSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)

	// Nobody reads this channel; Monitor must not wedge on it.
	mux.Subscribe()
	_, live := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	port.AddReadData([]byte("line-1\nline-2\n"))

	received := 0
	timeout := time.After(2 * time.Second)
	for received < 1 {
		select {
		case <-live:
			received++
		case <-timeout:
			t.Fatal("Timed out: Monitor appears blocked on an unread subscriber")
		}
	}
}

func TestCloseClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	_, ch := mux.Subscribe()
	if err := mux.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("Expected subscriber channel to be closed")
	}
	if !port.Closed {
		t.Error("Expected underlying port to be closed")
	}
}
