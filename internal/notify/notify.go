// Package notify implements the asynchronous notification sink. Handlers
// append events to an in-memory buffer and never wait; a background worker
// wakes periodically, partitions buffered events by kind and emits one
// batched message per kind. Without a configured mailer the sink degrades to
// logging only.
package notify

import (
	"fmt"
	"net/smtp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind classifies an event for batching.
type Kind string

const (
	KindAmbiguousMatch   Kind = "ambiguous_match"
	KindEnumAdded        Kind = "enum_added"
	KindSonstigUnwrapped Kind = "sonstig_unwrapped"
	KindOther            Kind = "other"
)

// Event is one actionable occurrence. Body lines of events of the same kind
// are joined into a single message per flush.
type Event struct {
	Kind Kind
	Body string
	At   time.Time
}

// Mailer delivers one batched message.
type Mailer interface {
	Send(subject, body string) error
}

// SMTPMailer sends mail over plain SMTP with optional PLAIN auth.
type SMTPMailer struct {
	Server    string // host:port
	User      string
	Password  string
	Sender    string
	Recipient string
}

// Send delivers a single text message.
func (m *SMTPMailer) Send(subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.Sender, m.Recipient, subject, body)
	var auth smtp.Auth
	if m.User != "" {
		host := m.Server
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.User, m.Password, host)
	}
	if err := smtp.SendMail(m.Server, auth, m.Sender, []string{m.Recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// DefaultInterval is how often the worker drains the buffer.
const DefaultInterval = 20 * time.Second

// Sink buffers events and flushes them in the background.
type Sink struct {
	log      *zap.Logger
	mailer   Mailer // nil means log-only
	interval time.Duration

	mu  sync.RWMutex
	buf []Event

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a sink. mailer may be nil.
func New(log *zap.Logger, mailer Mailer) *Sink {
	return &Sink{
		log:      log,
		mailer:   mailer,
		interval: DefaultInterval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// NewWithInterval is New with a custom flush interval. Test constructor.
func NewWithInterval(log *zap.Logger, mailer Mailer, interval time.Duration) *Sink {
	s := New(log, mailer)
	s.interval = interval
	return s
}

// Notify appends an event. Never blocks on I/O; safe from any goroutine.
func (s *Sink) Notify(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	s.buf = append(s.buf, e)
	s.mu.Unlock()
}

// Start launches the background worker. Call Stop to shut it down; Stop
// performs a final flush.
func (s *Sink) Start() {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Flush()
			case <-s.stopCh:
				s.Flush()
				return
			}
		}
	}()
}

// Stop shuts the worker down and waits for the final flush.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// Pending returns the number of buffered events. Test helper.
func (s *Sink) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

// Flush drains the buffer and emits one message per event kind. Send
// failures are logged; events are not retried across flushes.
func (s *Sink) Flush() {
	s.mu.Lock()
	drained := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(drained) == 0 {
		return
	}

	byKind := make(map[Kind][]Event)
	for _, e := range drained {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	kinds := make([]Kind, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, k := range kinds {
		events := byKind[k]
		lines := make([]string, len(events))
		for i, e := range events {
			lines[i] = fmt.Sprintf("[%s] %s", e.At.UTC().Format(time.RFC3339), e.Body)
		}
		subject := fmt.Sprintf("parlatrack: %d %s event(s)", len(events), k)
		body := strings.Join(lines, "\n")

		if s.mailer == nil {
			s.log.Info("notification (mail unconfigured)",
				zap.String("kind", string(k)),
				zap.Int("count", len(events)),
				zap.String("body", body))
			continue
		}
		if err := s.mailer.Send(subject, body); err != nil {
			s.log.Error("failed to send notification",
				zap.String("kind", string(k)),
				zap.Int("count", len(events)),
				zap.Error(err))
		}
	}
}
