package entity

import "time"

// Notification is an in-app feed entry for one recipient
type Notification struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"user_id"`
	Kind          NotificationKind `json:"kind"`
	DocumentID    int64            `json:"document_id"`
	DocumentTitle string           `json:"document_title"`
	Message       string           `json:"message"`
	Comment       string           `json:"comment,omitempty"`
	ActorName     string           `json:"actor_name,omitempty"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// IsRead reports whether the recipient has acknowledged the entry
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
