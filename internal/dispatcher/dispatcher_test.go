package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(":TEST:", func(ctx context.Context, e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(ctx, Event{Command: ":TEST:", Args: []string{"arg1"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(ctx, Event{Command: ":UNKNOWN:"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(":BUFFERED:", func(ctx context.Context, e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(ctx, Event{Command: ":BUFFERED:"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	// Wait for processing
	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Register(":FULL:", func(ctx context.Context, e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(ctx, Event{Command: ":FULL:"}) // being processed
	d.Dispatch(ctx, Event{Command: ":FULL:"}) // queued
	d.Dispatch(ctx, Event{Command: ":FULL:"}) // queued

	// This should be dropped
	_, err := d.Dispatch(ctx, Event{Command: ":FULL:"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(":BLOCKING:", func(ctx context.Context, e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(ctx, Event{Command: ":BLOCKING:"})
	// Second event fills the queue
	d.Dispatch(ctx, Event{Command: ":BLOCKING:"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(ctx, Event{Command: ":BLOCKING:"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	ctx := context.Background()
	d, logger := newTestDispatcher(t)

	d.Register(":LOGGED:", func(ctx context.Context, e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(ctx, Event{Command: ":LOGGED:", Args: []string{"a", "b"}})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	ctx := context.Background()
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(ctx context.Context, e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(ctx, Event{Command: ":ERROR:"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":EXISTS:", func(ctx context.Context, e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":EXISTS:") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(":NOT_EXISTS:") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	ctx := context.Background()
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(":COMBINED:", func(ctx context.Context, e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(ctx, Event{Command: ":COMBINED:"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_BlockingRespectsContext(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	d.Register(":STUCK:", func(ctx context.Context, e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	bg := context.Background()
	d.Dispatch(bg, Event{Command: ":STUCK:"})
	d.Dispatch(bg, Event{Command: ":STUCK:"})

	ctx, cancel := context.WithTimeout(bg, 20*time.Millisecond)
	defer cancel()
	_, err := d.Dispatch(ctx, Event{Command: ":STUCK:"})
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDispatcher_CloseDrainsQueues(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(":DRAIN:", func(ctx context.Context, e Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		if _, err := d.Dispatch(ctx, Event{Command: ":DRAIN:"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	d.Close()
	if processed.Load() != 5 {
		t.Errorf("expected 5 processed after Close, got %d", processed.Load())
	}

	if _, err := d.Dispatch(ctx, Event{Command: ":DRAIN:"}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// second close is a no-op
	d.Close()
}

func TestDispatcher_BufferedErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":FAIL:", func(ctx context.Context, e Event) (any, error) {
		return nil, fmt.Errorf("boom")
	}, Buffered(1))

	d.Dispatch(context.Background(), Event{Command: ":FAIL:"})
	d.Close()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.messages) != 1 {
		t.Fatalf("expected 1 log message, got %d", len(logger.messages))
	}
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)
	noop := func(ctx context.Context, e Event) (any, error) { return nil, nil }
	d.Register(":B:", noop)
	d.Register(":A:", noop)

	got := d.Commands()
	if len(got) != 2 || got[0] != ":A:" || got[1] != ":B:" {
		t.Errorf("unexpected commands: %v", got)
	}
}

func TestParseLine(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		line    string
		ok      bool
		command string
		args    int
	}{
		{"command with args", ":marker:add: 58.1 56.2", true, ":MARKER:ADD:", 2},
		{"bare command", ":MARKERS:LIST:", true, ":MARKERS:LIST:", 0},
		{"extra spaces", "  :IMAGE:RM:   7  ", true, ":IMAGE:RM:", 1},
		{"blank", "   ", false, "", 0},
		{"comment", "# setup", false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ParseLine(tt.line, now)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if e.Command != tt.command {
				t.Errorf("command = %q, want %q", e.Command, tt.command)
			}
			if len(e.Args) != tt.args {
				t.Errorf("args = %v, want %d", e.Args, tt.args)
			}
			if !e.Timestamp.Equal(now) {
				t.Errorf("timestamp = %v", e.Timestamp)
			}
		})
	}
}
