package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// LogNotifier writes notifications to the application log. It is the fallback
// when no external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyApproval(ctx context.Context, evt *event.Event) error {
	n.log("Approval notification", evt)
	return nil
}

func (n *LogNotifier) NotifyRejection(ctx context.Context, evt *event.Event) error {
	n.log("Rejection notification", evt)
	return nil
}

func (n *LogNotifier) NotifyCancellation(ctx context.Context, evt *event.Event) error {
	n.log("Cancellation notification", evt)
	return nil
}

func (n *LogNotifier) log(msg string, evt *event.Event) {
	n.logger.Info(msg,
		zap.String("event_id", evt.ID),
		zap.String("domain", evt.Domain.String()),
		zap.String("request_id", evt.RequestID),
		zap.String("requestor_ref", evt.RequestorRef),
		zap.String("new_status", evt.NewStatus.String()),
		zap.String("message", FormatMessage(evt)))
}

// Verify interface compliance
var _ port.Notifier = (*LogNotifier)(nil)
