package sessiongate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testAuditEvent(action string) AuditEvent {
	return AuditEvent{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		Actor:     "u-1",
		Action:    action,
		Success:   true,
		Severity:  severityInfo,
	}
}

// slowSink blocks every Emit until released, to fill the dispatcher buffer.
type slowSink struct {
	release chan struct{}
	mu      sync.Mutex
	seen    []AuditEvent
}

func newSlowSink() *slowSink {
	return &slowSink{release: make(chan struct{})}
}

func (s *slowSink) Emit(ctx context.Context, event AuditEvent) {
	<-s.release
	s.mu.Lock()
	s.seen = append(s.seen, event)
	s.mu.Unlock()
}

func (s *slowSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &memorySink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), testAuditEvent(fmt.Sprintf("event-%d", i)))
	}
	d.Close()

	actions := sink.actions()
	if len(actions) != 5 {
		t.Fatalf("delivered %d events, want 5", len(actions))
	}
	for i, a := range actions {
		if want := fmt.Sprintf("event-%d", i); a != want {
			t.Fatalf("order broken at %d: got %q, want %q", i, a, want)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := newSlowSink()
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 2, DropIfFull: true}, sink)

	// One event may be in the sink's hands plus two buffered; everything
	// beyond that is dropped without blocking this goroutine.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), testAuditEvent("flood"))
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(sink.release)
	d.Close()

	if got := sink.count() + int(d.Dropped()); got != 10 {
		t.Fatalf("delivered+dropped = %d, want 10", got)
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), testAuditEvent("queued"))
	}
	d.Close()

	if got := len(sink.actions()); got != 20 {
		t.Fatalf("drained %d events, want 20", got)
	}

	// Emit after close is a silent no-op.
	d.Emit(context.Background(), testAuditEvent("late"))
	d.Close()
}

func TestDispatcherDisabled(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{Enabled: false}, &memorySink{}); d != nil {
		t.Fatal("disabled config must yield a nil dispatcher")
	}
	// Nil receivers are safe at every call site.
	var d *auditDispatcher
	d.Emit(context.Background(), testAuditEvent("ignored"))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher dropped count")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	first := testAuditEvent("session_created")
	first.Metadata = map[string]string{"device_class": "desktop"}
	sink.Emit(context.Background(), first)
	sink.Emit(context.Background(), testAuditEvent("session_invalidated"))

	scanner := bufio.NewScanner(&buf)
	var lines []AuditEvent
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		lines = append(lines, event)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Action != "session_created" || lines[0].Metadata["device_class"] != "desktop" {
		t.Fatalf("first line: %+v", lines[0])
	}
	if lines[0].EventID != first.EventID {
		t.Fatal("event id lost in serialization")
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), testAuditEvent("one"))

	select {
	case event := <-sink.Events():
		if event.Action != "one" {
			t.Fatalf("action = %q", event.Action)
		}
	default:
		t.Fatal("event not buffered")
	}

	// A full channel respects context cancellation instead of blocking.
	for i := 0; i < 4; i++ {
		sink.Emit(context.Background(), testAuditEvent("fill"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, testAuditEvent("overflow"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit on full channel ignored cancellation")
	}
}
