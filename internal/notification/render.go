package notification

import (
	"fmt"
	"strings"

	"github.com/garyjia/doc-approval/internal/domain/entity"
)

// Render formats n as a short plain-text message for chat transports
func Render(n *entity.Notification) string {
	var b strings.Builder
	switch n.Kind {
	case entity.NotificationPendingApproval:
		b.WriteString("Approval needed: ")
	case entity.NotificationApproved:
		b.WriteString("Approved: ")
	case entity.NotificationRejected:
		b.WriteString("Rejected: ")
	}
	fmt.Fprintf(&b, "%q (#%d)", n.DocumentTitle, n.DocumentID)
	if n.Message != "" {
		b.WriteString("\n")
		b.WriteString(n.Message)
	}
	if n.Comment != "" {
		b.WriteString("\nComment: ")
		b.WriteString(n.Comment)
	}
	return b.String()
}
