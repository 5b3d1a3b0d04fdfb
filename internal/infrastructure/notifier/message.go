package notifier

import (
	"fmt"
	"strings"

	"github.com/garyjia/approval-workflow/internal/domain/event"
)

// FormatMessage renders the human-readable text sent to the requestor
func FormatMessage(evt *event.Event) string {
	var b strings.Builder

	switch evt.Type {
	case event.TypeRequestApproved:
		fmt.Fprintf(&b, "Your %s request %s was approved by %s (%s).", evt.Domain, evt.RequestID, evt.ActorName, evt.ActorRole)
		fmt.Fprintf(&b, "\nCurrent status: %s", evt.NewStatus)
	case event.TypeRequestRejected:
		fmt.Fprintf(&b, "Your %s request %s was rejected by %s (%s).", evt.Domain, evt.RequestID, evt.ActorName, evt.ActorRole)
	case event.TypeRequestCancelled:
		fmt.Fprintf(&b, "Your %s request %s was cancelled by %s.", evt.Domain, evt.RequestID, evt.ActorName)
	default:
		fmt.Fprintf(&b, "Your %s request %s is now %s.", evt.Domain, evt.RequestID, evt.NewStatus)
	}

	if evt.Comments != "" {
		fmt.Fprintf(&b, "\nComments: %s", evt.Comments)
	}
	return b.String()
}
