package dto

import (
	"time"

	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/workflow"
)

// CreateTicketRequest is the intake payload.
type CreateTicketRequest struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	MobilePhone   string `json:"mobilePhone"`
	LandlinePhone string `json:"landlinePhone"`

	RequestType     string `json:"requestType"`
	ExistingAddress string `json:"existingAddress"`
	AdditionalInfo  string `json:"additionalInfo"`

	PremiseType         string   `json:"premiseType"`
	PropertyID          string   `json:"propertyId"`
	County              string   `json:"county"`
	StreetName          string   `json:"streetName"`
	ClosestIntersection string   `json:"closestIntersection"`
	Subdivision         string   `json:"subdivision"`
	LotNumber           string   `json:"lotNumber"`
	XCoordinate         *float64 `json:"xCoordinate"`
	YCoordinate         *float64 `json:"yCoordinate"`

	Priority string `json:"priority"`
}

// ToIntakeInput maps the request onto the workflow intake input.
func (r CreateTicketRequest) ToIntakeInput() workflow.IntakeInput {
	return workflow.IntakeInput{
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Email:               r.Email,
		MobilePhone:         r.MobilePhone,
		LandlinePhone:       r.LandlinePhone,
		RequestType:         domain.RequestType(r.RequestType),
		ExistingAddress:     r.ExistingAddress,
		AdditionalInfo:      r.AdditionalInfo,
		PremiseType:         domain.PremiseType(r.PremiseType),
		PropertyID:          r.PropertyID,
		County:              r.County,
		StreetName:          r.StreetName,
		ClosestIntersection: r.ClosestIntersection,
		Subdivision:         r.Subdivision,
		LotNumber:           r.LotNumber,
		XCoordinate:         r.XCoordinate,
		YCoordinate:         r.YCoordinate,
		Priority:            domain.TicketPriority(r.Priority),
	}
}

// TransitionTicketRequest asks for a workflow stage change.
type TransitionTicketRequest struct {
	TargetStage      string `json:"targetStage"`
	Note             string `json:"note"`
	ApprovedAddress  string `json:"approvedAddress"`
	VerificationNote string `json:"verificationNote"`
}

// CloseTicketRequest closes a completed ticket.
type CloseTicketRequest struct {
	Note string `json:"note"`
}

// StaffRefResponse is the embedded staff reference view.
type StaffRefResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// HistoryEntryResponse is one audit-trail row.
type HistoryEntryResponse struct {
	Seq           int       `json:"seq"`
	WorkflowStage string    `json:"workflowStage"`
	Status        *string   `json:"status,omitempty"`
	AssignedTo    *string   `json:"assignedTo,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ActionBy      string    `json:"actionBy"`
	Timestamp     time.Time `json:"timestamp"`
}

// TicketResponse is the full ticket view returned to staff.
type TicketResponse struct {
	ID           string `json:"id"`
	TicketNumber string `json:"ticketNumber"`

	Status        string `json:"status"`
	WorkflowStage string `json:"workflowStage"`
	Priority      string `json:"priority"`

	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Email         string  `json:"email"`
	MobilePhone   *string `json:"mobilePhone,omitempty"`
	LandlinePhone *string `json:"landlinePhone,omitempty"`

	RequestType     string `json:"requestType"`
	ExistingAddress string `json:"existingAddress,omitempty"`
	AdditionalInfo  string `json:"additionalInfo,omitempty"`

	PremiseType         string  `json:"premiseType"`
	PropertyID          string  `json:"propertyId,omitempty"`
	County              string  `json:"county"`
	StreetName          string  `json:"streetName"`
	ClosestIntersection string  `json:"closestIntersection,omitempty"`
	Subdivision         string  `json:"subdivision,omitempty"`
	LotNumber           string  `json:"lotNumber,omitempty"`
	XCoordinate         float64 `json:"xCoordinate"`
	YCoordinate         float64 `json:"yCoordinate"`

	ApprovedAddress  string `json:"approvedAddress,omitempty"`
	AddressCreated   bool   `json:"addressCreated"`
	AddressVerified  bool   `json:"addressVerified"`
	VerificationNote string `json:"verificationNote,omitempty"`

	AssignedTo *StaffRefResponse `json:"assignedTo,omitempty"`
	CreatedBy  *StaffRefResponse `json:"createdBy,omitempty"`

	DueDate       time.Time `json:"dueDate"`
	TimeToResolve int       `json:"timeToResolve"`

	SignatureRequested   bool       `json:"signatureRequested"`
	SignatureRequestedAt *time.Time `json:"signatureRequestedAt,omitempty"`
	SignatureCompleted   bool       `json:"signatureCompleted"`
	SignatureCompletedAt *time.Time `json:"signatureCompletedAt,omitempty"`
	AddressLetterPath    *string    `json:"addressLetterPath,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	History []HistoryEntryResponse `json:"history,omitempty"`
}

// FromTicket builds the response view.
func FromTicket(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:                   t.ID,
		TicketNumber:         t.TicketNumber,
		Status:               string(t.Status),
		WorkflowStage:        string(t.WorkflowStage),
		Priority:             string(t.Priority),
		FirstName:            t.FirstName,
		LastName:             t.LastName,
		Email:                t.Email,
		MobilePhone:          t.MobilePhone,
		LandlinePhone:        t.LandlinePhone,
		RequestType:          string(t.RequestType),
		ExistingAddress:      t.ExistingAddress,
		AdditionalInfo:       t.AdditionalInfo,
		PremiseType:          string(t.PremiseType),
		PropertyID:           t.PropertyID,
		County:               t.County,
		StreetName:           t.StreetName,
		ClosestIntersection:  t.ClosestIntersection,
		Subdivision:          t.Subdivision,
		LotNumber:            t.LotNumber,
		XCoordinate:          t.XCoordinate,
		YCoordinate:          t.YCoordinate,
		ApprovedAddress:      t.ApprovedAddress,
		AddressCreated:       t.AddressCreated,
		AddressVerified:      t.AddressVerified,
		VerificationNote:     t.VerificationNote,
		AssignedTo:           fromStaffRef(t.AssignedTo),
		CreatedBy:            fromStaffRef(t.CreatedBy),
		DueDate:              t.DueDate,
		TimeToResolve:        t.TimeToResolve,
		SignatureRequested:   t.SignatureRequested,
		SignatureRequestedAt: t.SignatureRequestedAt,
		SignatureCompleted:   t.SignatureCompleted,
		SignatureCompletedAt: t.SignatureCompletedAt,
		AddressLetterPath:    t.AddressLetterPath,
		Version:              t.Version,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
	for _, entry := range t.History {
		resp.History = append(resp.History, fromHistoryEntry(entry))
	}
	return resp
}

// FromTickets maps a ticket slice to summary views without history.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	result := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		item := FromTicket(&tickets[i])
		item.History = nil
		result = append(result, item)
	}
	return result
}

func fromStaffRef(ref *domain.StaffRef) *StaffRefResponse {
	if ref == nil {
		return nil
	}
	return &StaffRefResponse{ID: ref.ID, Name: ref.Name, Email: ref.Email}
}

func fromHistoryEntry(entry domain.HistoryEntry) HistoryEntryResponse {
	resp := HistoryEntryResponse{
		Seq:           entry.Seq,
		WorkflowStage: string(entry.WorkflowStage),
		AssignedTo:    entry.AssignedTo,
		Notes:         entry.Notes,
		ActionBy:      entry.ActionBy,
		Timestamp:     entry.Timestamp,
	}
	if entry.Status != nil {
		status := string(*entry.Status)
		resp.Status = &status
	}
	return resp
}
