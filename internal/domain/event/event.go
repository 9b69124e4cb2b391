package event

import (
	"time"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/google/uuid"
)

// Event represents a domain event
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	DocumentID    int64                  `json:"document_id"`
	Transition    *Transition            `json:"transition,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// Transition is the typed body of a document.status_changed event.
// Document and Actor are snapshots taken at commit time.
type Transition struct {
	Document  entity.Document  `json:"document"`
	Actor     entity.User      `json:"actor"`
	Action    workflow.Trigger `json:"action"`
	Tag       entity.ActionTag `json:"tag"`
	OldStatus workflow.State   `json:"old_status"`
	NewStatus workflow.State   `json:"new_status"`
	Comment   string           `json:"comment,omitempty"`
}

// Record converts the transition into its audit trail entry
func (t *Transition) Record() *entity.TransitionRecord {
	return &entity.TransitionRecord{
		DocumentID: t.Document.ID,
		UserID:     t.Actor.ID,
		Action:     t.Tag,
		OldStatus:  t.OldStatus,
		NewStatus:  t.NewStatus,
		Comment:    t.Comment,
		ActorName:  t.Actor.Name,
	}
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, documentID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:            generateID(),
		Type:          eventType,
		DocumentID:    documentID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: generateID(),
	}
}

// NewStatusChanged creates the event published after a committed transition
func NewStatusChanged(t *Transition) *Event {
	e := NewEvent(TypeDocumentStatusChanged, t.Document.ID, nil)
	e.Transition = t
	return e
}

// WithCorrelation returns a copy of e linked to an existing correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	cp := *e
	cp.CorrelationID = correlationID
	return &cp
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

func generateID() string {
	return uuid.NewString()
}
