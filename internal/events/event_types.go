package events

import (
	"time"

	"github.com/cityworks/addressing-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventStageChanged       EventType = "ticket_stage_changed"
	EventTicketAssigned     EventType = "ticket_assigned"
	EventTicketClosed       EventType = "ticket_closed"
	EventPriorityChanged    EventType = "ticket_priority_changed"
	EventSignatureRequested EventType = "signature_requested"
	EventSignatureCompleted EventType = "signature_completed"
)

// Event represents a domain event emitted by the workflow engine and services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	RequestType  domain.RequestType    `json:"request_type"`
	Priority     domain.TicketPriority `json:"priority"`
	DueDate      time.Time             `json:"due_date"`
}

// StageChangedPayload payload.
type StageChangedPayload struct {
	FromStage domain.WorkflowStage `json:"from_stage"`
	ToStage   domain.WorkflowStage `json:"to_stage"`
	Status    domain.TicketStatus  `json:"status"`
	Note      string               `json:"note,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID   *string              `json:"assignee_id,omitempty"`
	AssigneeName string               `json:"assignee_name,omitempty"`
	Stage        domain.WorkflowStage `json:"stage"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	Note string `json:"note,omitempty"`
}

// PriorityChangedPayload payload.
type PriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// SignatureRequestedPayload payload.
type SignatureRequestedPayload struct {
	Email        string `json:"email"`
	TicketNumber string `json:"ticket_number"`
	SignatureURL string `json:"signature_url"`
}

// SignatureCompletedPayload payload.
type SignatureCompletedPayload struct {
	TicketNumber      string `json:"ticket_number"`
	AddressLetterPath string `json:"address_letter_path,omitempty"`
}
