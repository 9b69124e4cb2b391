package event

// Type identifies the type of domain event
type Type string

const (
	TypeDocumentCreated       Type = "document.created"
	TypeDocumentUpdated       Type = "document.updated"
	TypeDocumentDeleted       Type = "document.deleted"
	TypeDocumentStatusChanged Type = "document.status_changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeDocumentCreated,
		TypeDocumentUpdated,
		TypeDocumentDeleted,
		TypeDocumentStatusChanged:
		return true
	default:
		return false
	}
}
