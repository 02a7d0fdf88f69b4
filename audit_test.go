package authport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type collectSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *collectSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &collectSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), AuditEvent{
			Timestamp: time.Now(),
			EventType: auditEventLoginSuccess,
			UserID:    "u1",
			Success:   true,
		})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 20 {
		t.Errorf("sink received %d events, want 20", got)
	}
	if d.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", d.Dropped())
	}
}

// blockingSink parks on hold after signalling entered, simulating a
// slow downstream.
type blockingSink struct {
	entered chan struct{}
	hold    chan struct{}
	once    sync.Once
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	s.once.Do(func() { close(s.entered) })
	<-s.hold
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	sink := &blockingSink{
		entered: make(chan struct{}),
		hold:    make(chan struct{}),
	}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	d.Emit(context.Background(), AuditEvent{EventType: "a"})
	select {
	case <-sink.entered:
	case <-time.After(time.Second):
		t.Fatal("dispatcher never reached the sink")
	}

	// Sink is stuck on the first event; this one sits in the buffer.
	d.Emit(context.Background(), AuditEvent{EventType: "b"})
	// Buffer full now, so this one must be dropped without blocking.
	d.Emit(context.Background(), AuditEvent{EventType: "c"})

	if d.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", d.Dropped())
	}

	close(sink.hold)
	d.Close()
}

func TestDispatcherDisabled(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &collectSink{})
	if d != nil {
		t.Fatal("disabled config produced a dispatcher")
	}

	// All methods must be safe on the nil dispatcher.
	d.Emit(context.Background(), AuditEvent{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Error("nil dispatcher reported drops")
	}
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	sink := &collectSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "late"})
	if got := len(sink.snapshot()); got != 0 {
		t.Errorf("sink received %d events after close, want 0", got)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	want := AuditEvent{EventType: auditEventTokenIssued, JTI: "jti-1", Success: true}
	sink.Emit(context.Background(), want)

	select {
	case got := <-sink.Events():
		if got.EventType != want.EventType || got.JTI != want.JTI {
			t.Errorf("got %+v, want %+v", got, want)
		}
	default:
		t.Fatal("no event on channel")
	}

	// A full channel must not block once the context is cancelled.
	for i := 0; i < 4; i++ {
		sink.Emit(context.Background(), AuditEvent{EventType: "fill"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, AuditEvent{EventType: "overflow"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on full channel with cancelled context")
	}
}

func TestJSONWriterSinkWritesLineJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLoginFailure, UserID: "u1"})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventTokenDestroyed, JTI: "j1", Success: true})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2", len(lines))
	}

	var first AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if first.EventType != auditEventLoginFailure || first.UserID != "u1" {
		t.Errorf("unexpected first event: %+v", first)
	}
}
