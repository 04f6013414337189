package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. Status is derived
// from the workflow stage by the engine; callers never set it directly.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// WorkflowStage is the authoritative state-machine position of a ticket.
type WorkflowStage string

const (
	StageFrontDesk      WorkflowStage = "Front Desk"
	StageAddressing     WorkflowStage = "Addressing"
	StageVerification   WorkflowStage = "Verification"
	StageReadyToContact WorkflowStage = "Ready to Contact Customer"
	StageCompleted      WorkflowStage = "Completed"
)

// TicketPriority enumerates due-date urgency tiers.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

// RequestType enumerates the kinds of address requests taken at intake.
type RequestType string

const (
	RequestTypeNewAddress     RequestType = "New Address"
	RequestTypeVerifyExisting RequestType = "Verify Existing Address"
)

// PremiseType enumerates what kind of premise the address serves.
type PremiseType string

const (
	PremiseTypeResidence  PremiseType = "Residence"
	PremiseTypeCommercial PremiseType = "Commercial"
	PremiseTypeBuilding   PremiseType = "Building Structure"
	PremiseTypeUtility    PremiseType = "Utility"
)

// SystemActorID is recorded as the acting party when no staff actor is
// available for a history entry.
const SystemActorID = "system"

// StaffRef is a display-friendly weak reference to a staff member.
type StaffRef struct {
	ID    string
	Name  string
	Email string
}

// Ticket is the aggregate root for an address-assignment request. After
// creation it is mutated only through the workflow engine.
type Ticket struct {
	ID           string
	TicketNumber string

	Status        TicketStatus
	WorkflowStage WorkflowStage
	Priority      TicketPriority

	// Contact information
	FirstName     string
	LastName      string
	Email         string
	MobilePhone   *string
	LandlinePhone *string

	// Request details
	RequestType     RequestType
	ExistingAddress string
	AdditionalInfo  string

	// Property information
	PremiseType         PremiseType
	PropertyID          string
	County              string
	StreetName          string
	ClosestIntersection string
	Subdivision         string
	LotNumber           string
	XCoordinate         float64
	YCoordinate         float64

	// Workflow outcome fields
	ApprovedAddress  string
	AddressCreated   bool
	AddressVerified  bool
	VerificationNote string

	AssignedTo *StaffRef
	CreatedBy  *StaffRef

	DueDate       time.Time
	TimeToResolve int

	// Signature sub-flow (gated on WorkflowStage == StageReadyToContact)
	SignatureToken       *string
	SignatureRequested   bool
	SignatureRequestedAt *time.Time
	SignatureRequestedBy *string
	SignatureCompleted   bool
	SignatureCompletedAt *time.Time
	AddressLetterPath    *string

	// Version supports optimistic concurrency on atomic updates.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	// History is the append-only audit trail, ordered by Seq.
	History []HistoryEntry
}

// AssignedToID returns the assignee staff id, or empty when unassigned.
func (t *Ticket) AssignedToID() string {
	if t.AssignedTo == nil {
		return ""
	}
	return t.AssignedTo.ID
}

// IsOpen reports whether the ticket still participates in priority updates.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusResolved && t.Status != TicketStatusClosed
}
