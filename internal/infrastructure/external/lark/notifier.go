package lark

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	"github.com/garyjia/approval-workflow/internal/infrastructure/notifier"
)

// chatSender is implemented by senders that can also post to a group chat
type chatSender interface {
	SendChatMessage(ctx context.Context, chatID string, content string) error
}

// Notifier delivers workflow notifications to the requestor over Lark
type Notifier struct {
	sender port.MessageSender
	chatID string
	logger *zap.Logger
}

// NewNotifier creates a Lark notifier. When chatID is set, notifications are also posted there.
func NewNotifier(sender port.MessageSender, chatID string, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		logger: logger,
	}
}

func (n *Notifier) NotifyApproval(ctx context.Context, evt *event.Event) error {
	return n.notify(ctx, evt)
}

func (n *Notifier) NotifyRejection(ctx context.Context, evt *event.Event) error {
	return n.notify(ctx, evt)
}

func (n *Notifier) NotifyCancellation(ctx context.Context, evt *event.Event) error {
	return n.notify(ctx, evt)
}

func (n *Notifier) notify(ctx context.Context, evt *event.Event) error {
	if evt.RequestorRef == "" {
		return fmt.Errorf("request %s has no requestor to notify", evt.RequestID)
	}

	message := notifier.FormatMessage(evt)
	if err := n.sender.SendMessage(ctx, evt.RequestorRef, message); err != nil {
		return fmt.Errorf("notify requestor %s: %w", evt.RequestorRef, err)
	}

	if n.chatID != "" {
		if cs, ok := n.sender.(chatSender); ok {
			if err := cs.SendChatMessage(ctx, n.chatID, message); err != nil {
				n.logger.Warn("Failed to copy notification to chat",
					zap.String("chat_id", n.chatID),
					zap.String("request_id", evt.RequestID),
					zap.Error(err))
			}
		}
	}

	n.logger.Info("Lark notification sent",
		zap.String("event_type", evt.Type.String()),
		zap.String("request_id", evt.RequestID),
		zap.String("requestor_ref", evt.RequestorRef))
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
