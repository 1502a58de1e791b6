package notify

import (
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []struct{ subject, body string }
}

func (m *fakeMailer) Send(subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, struct{ subject, body string }{subject, body})
	return nil
}

func (m *fakeMailer) messages() []struct{ subject, body string } {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]struct{ subject, body string }(nil), m.sent...)
}

func TestFlushBatchesByKind(t *testing.T) {
	mailer := &fakeMailer{}
	sink := New(zap.NewNop(), mailer)

	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	sink.Notify(Event{Kind: KindAmbiguousMatch, Body: "first", At: at})
	sink.Notify(Event{Kind: KindAmbiguousMatch, Body: "second", At: at})
	sink.Notify(Event{Kind: KindEnumAdded, Body: "third", At: at})

	if got := sink.Pending(); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}
	sink.Flush()
	if got := sink.Pending(); got != 0 {
		t.Fatalf("pending after flush = %d, want 0", got)
	}

	msgs := mailer.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want one per kind (2)", len(msgs))
	}
	// Kinds flush in sorted order: ambiguous_match before enum_added.
	if !strings.Contains(msgs[0].subject, "2 ambiguous_match") {
		t.Fatalf("first subject = %q, want ambiguous_match batch of 2", msgs[0].subject)
	}
	if !strings.Contains(msgs[0].body, "first") || !strings.Contains(msgs[0].body, "second") {
		t.Fatalf("batched body missing event lines: %q", msgs[0].body)
	}
	if !strings.Contains(msgs[1].subject, "1 enum_added") {
		t.Fatalf("second subject = %q, want enum_added batch of 1", msgs[1].subject)
	}
}

func TestFlushEmptyBufferSendsNothing(t *testing.T) {
	mailer := &fakeMailer{}
	sink := New(zap.NewNop(), mailer)
	sink.Flush()
	if len(mailer.messages()) != 0 {
		t.Fatal("empty flush must not send")
	}
}

func TestNilMailerDegradesToLogging(t *testing.T) {
	sink := New(zap.NewNop(), nil)
	sink.Notify(Event{Kind: KindOther, Body: "hello"})
	sink.Flush() // must not panic
	if got := sink.Pending(); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
}

func TestStopPerformsFinalFlush(t *testing.T) {
	mailer := &fakeMailer{}
	sink := NewWithInterval(zap.NewNop(), mailer, time.Hour)
	sink.Start()
	sink.Notify(Event{Kind: KindSonstigUnwrapped, Body: "station abc uses sonstig"})
	sink.Stop()

	msgs := mailer.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages after stop, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].body, "station abc uses sonstig") {
		t.Fatalf("final flush body = %q", msgs[0].body)
	}

	// Stop is idempotent.
	sink.Stop()
}

func TestNotifyStampsTime(t *testing.T) {
	sink := New(zap.NewNop(), nil)
	sink.Notify(Event{Kind: KindOther, Body: "x"})
	sink.mu.RLock()
	at := sink.buf[0].At
	sink.mu.RUnlock()
	if at.IsZero() {
		t.Fatal("zero At should be stamped on Notify")
	}
}
