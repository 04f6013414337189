package dto

import "github.com/cityworks/addressing-service/internal/domain"

// SignatureTicketResponse is the reduced public view shown on the signing
// page. It intentionally omits internal workflow and staff details.
type SignatureTicketResponse struct {
	TicketNumber       string `json:"ticketNumber"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	ApprovedAddress    string `json:"approvedAddress"`
	County             string `json:"county"`
	PremiseType        string `json:"premiseType"`
	SignatureCompleted bool   `json:"signatureCompleted"`
}

// FromTicketForSignature builds the public signing view.
func FromTicketForSignature(t *domain.Ticket) SignatureTicketResponse {
	return SignatureTicketResponse{
		TicketNumber:       t.TicketNumber,
		FirstName:          t.FirstName,
		LastName:           t.LastName,
		ApprovedAddress:    t.ApprovedAddress,
		County:             t.County,
		PremiseType:        string(t.PremiseType),
		SignatureCompleted: t.SignatureCompleted,
	}
}

// CompleteSignatureRequest submits the customer's signature image as a
// base64 data URL.
type CompleteSignatureRequest struct {
	SignatureData string `json:"signatureData"`
}
