// Package notify publishes finished update cycles to a message bus so other
// services can react to rebuilt bundles.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/loaderbuild/internal/logfields"
	"git.home.luguber.info/inful/loaderbuild/internal/orchestrator"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "loaderbuild.cycles"

// Message is the JSON document published for every finished cycle.
type Message struct {
	CycleID     string    `json:"cycle_id"`
	Bundle      string    `json:"bundle"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	FailedState string    `json:"failed_state,omitempty"`
	Error       string    `json:"error,omitempty"`
	Targets     []string  `json:"targets"`
	Builds      []string  `json:"builds"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// NewMessage converts a finished outcome.
func NewMessage(out *orchestrator.Outcome) Message {
	return Message{
		CycleID:     out.CycleID,
		Bundle:      out.Bundle,
		Source:      out.Source,
		Status:      string(out.Status),
		FailedState: string(out.FailedState),
		Error:       out.Error,
		Targets:     nonNil(out.Targets),
		Builds:      nonNil(out.Builds),
		StartedAt:   out.Started,
		DurationMS:  out.Duration.Milliseconds(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Sink delivers encoded messages.
type Sink interface {
	Publish(ctx context.Context, subject string, data []byte) error
	// Remember stores the latest message per bundle, for consumers that
	// join late.
	Remember(ctx context.Context, bundle string, data []byte) error
}

// Notifier is an orchestrator.Observer publishing finished cycles to a Sink.
// Publish failures are logged and never fail a cycle.
type Notifier struct {
	sink    Sink
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

var _ orchestrator.Observer = (*Notifier)(nil)

// NewNotifier creates a notifier publishing under prefix.
func NewNotifier(sink Sink, prefix string, logger *slog.Logger) *Notifier {
	if prefix == "" {
		prefix = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sink: sink, prefix: prefix, timeout: 5 * time.Second, logger: logger}
}

// Subject returns <prefix>.<bundle>.<status>.
func (n *Notifier) Subject(bundle, status string) string {
	return n.prefix + "." + Token(bundle) + "." + Token(status)
}

// CycleStarted implements orchestrator.Observer. Only finished cycles are published.
func (n *Notifier) CycleStarted(context.Context, *orchestrator.Outcome) {}

// CycleFinished implements orchestrator.Observer.
func (n *Notifier) CycleFinished(ctx context.Context, out *orchestrator.Outcome) {
	msg := NewMessage(out)
	data, err := json.Marshal(msg)
	if err != nil {
		n.logger.Warn("Failed to encode cycle notification", logfields.CycleID(out.CycleID), logfields.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	subject := n.Subject(msg.Bundle, msg.Status)
	if err := n.sink.Publish(ctx, subject, data); err != nil {
		n.logger.Warn("Failed to publish cycle notification",
			logfields.CycleID(out.CycleID),
			slog.String("subject", subject),
			logfields.Error(err))
		return
	}
	if err := n.sink.Remember(ctx, Token(msg.Bundle), data); err != nil {
		n.logger.Warn("Failed to store latest cycle", logfields.Bundle(msg.Bundle), logfields.Error(err))
	}
	n.logger.Debug("Published cycle notification", logfields.CycleID(out.CycleID), slog.String("subject", subject))
}

// Token makes s safe as a single subject token or key: separators, wildcards
// and whitespace become underscores.
func Token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == '*' || r == '>' || r == '/' || r == '\\':
			return '_'
		case r <= ' ' || r == 0x7f:
			return '_'
		}
		return r
	}, s)
}
