package domain

import "time"

// HistoryEntry is an immutable audit record embedded in a ticket. Every
// field is always present (nullable where semantically absent) so entries
// are uniformly inspectable regardless of which transition produced them.
type HistoryEntry struct {
	ID            string
	TicketID      string
	Seq           int
	WorkflowStage WorkflowStage
	Status        *TicketStatus
	AssignedTo    *string
	Notes         string
	ActionBy      string
	Timestamp     time.Time
}
