package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// Multi fans a notification out to every channel. All channels are attempted;
// their errors are joined.
type Multi struct {
	notifiers []port.Notifier
}

// NewMulti creates a fan-out notifier, skipping nil entries
func NewMulti(notifiers ...port.Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len returns the number of channels
func (m *Multi) Len() int {
	return len(m.notifiers)
}

func (m *Multi) NotifyApproval(ctx context.Context, evt *event.Event) error {
	return m.each(func(n port.Notifier) error { return n.NotifyApproval(ctx, evt) })
}

func (m *Multi) NotifyRejection(ctx context.Context, evt *event.Event) error {
	return m.each(func(n port.Notifier) error { return n.NotifyRejection(ctx, evt) })
}

func (m *Multi) NotifyCancellation(ctx context.Context, evt *event.Event) error {
	return m.each(func(n port.Notifier) error { return n.NotifyCancellation(ctx, evt) })
}

func (m *Multi) each(fn func(port.Notifier) error) error {
	var errs []error
	for i, n := range m.notifiers {
		if err := fn(n); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Verify interface compliance
var _ port.Notifier = (*Multi)(nil)
