// Package notify tells the outside world that a new Generation is live.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// Notification describes a committed run.
type Notification struct {
	RunID        string           `json:"run_id"`
	GenerationID string           `json:"generation_id"`
	Status       domain.RunStatus `json:"status"`
	Theme        string           `json:"theme"`
	ThemeSource  string           `json:"theme_source"`
	Requested    int              `json:"requested"`
	Cached       int              `json:"cached"`
	Files        []string         `json:"files"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Message renders a short human-readable summary.
func (n *Notification) Message() string {
	if n.Status == domain.RunStatusPartial {
		return fmt.Sprintf("Photo frame updated: %q (%d of %d photos)", n.Theme, n.Cached, n.Requested)
	}
	return fmt.Sprintf("Photo frame updated: %q (%d photos)", n.Theme, n.Cached)
}

// Sink delivers notifications to one destination.
type Sink interface {
	Name() string
	Notify(ctx context.Context, n *Notification) error
}

// Multi fans a notification out to every sink. One sink failing does not
// stop the others; all errors are returned joined.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Len returns the number of configured sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Notify(ctx context.Context, n *Notification) error {
	var errs []error
	for _, s := range m.sinks {
		start := time.Now()
		err := s.Notify(ctx, n)
		entry := logger.With(logger.Fields{"sink": s.Name()}).WithDuration(time.Since(start))
		if err != nil {
			entry.WithStatus("error").Warn(ctx, "Notify via %s failed: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		entry.WithStatus("ok").Debug(ctx, "Notified via %s", s.Name())
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds a connection.
func (m *Multi) Close() {
	for _, s := range m.sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
