package verikit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: EventCodeGenerate, Email: "alice@example.com", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: EventCodeVerify, Email: "alice@example.com"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if event.EventType != EventCodeGenerate || !event.Success {
		t.Fatalf("unexpected decoded event: %+v", event)
	}
}

func TestChannelSinkDeliversEvents(t *testing.T) {
	sink := NewChannelSink(4)

	sink.Emit(context.Background(), AuditEvent{EventType: EventCleanup})

	select {
	case event := <-sink.Events():
		if event.EventType != EventCleanup {
			t.Fatalf("unexpected event: %+v", event)
		}
	default:
		t.Fatal("expected buffered event")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: EventCodeVerify})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
			continue
		default:
		}
		break
	}
	if delivered != 5 {
		t.Fatalf("expected 5 delivered events, got %d", delivered)
	}
	if d.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", d.Dropped())
	}
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	// A sink that never accepts keeps the buffer full.
	blocked := make(chan AuditEvent)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, &ChannelSink{events: blocked})

	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		d.Emit(context.Background(), AuditEvent{EventType: EventCodeVerify})
		select {
		case <-deadline:
			t.Fatal("expected drops once the buffer filled")
		default:
		}
	}

	// Unblock the sink so Close can drain without deadlocking.
	go func() {
		for range blocked {
		}
	}()
	d.Close()
}

func TestDispatcherDisabled(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{}, NewChannelSink(1)); d != nil {
		t.Fatal("expected nil dispatcher when audit is disabled")
	}

	// Nil dispatcher methods are safe to call.
	var d *auditDispatcher
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}

func TestEmitAfterEngineCloseIsNoOp(t *testing.T) {
	sink := NewChannelSink(4)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: EventCodeVerify})

	select {
	case event := <-sink.Events():
		t.Fatalf("expected no delivery after close, got %+v", event)
	default:
	}
}
