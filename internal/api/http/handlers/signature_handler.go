package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cityworks/addressing-service/internal/api/dto"
	"github.com/cityworks/addressing-service/internal/service"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// SignatureHandler serves the public, tokenized customer signing endpoints.
// These routes carry no staff authentication; the token is the credential.
type SignatureHandler struct {
	signatures *service.SignatureService
}

// NewSignatureHandler constructs the handler.
func NewSignatureHandler(signatures *service.SignatureService) *SignatureHandler {
	return &SignatureHandler{signatures: signatures}
}

// Lookup shows the reduced ticket view for the signing page.
func (h *SignatureHandler) Lookup(c *fiber.Ctx) error {
	ticket, err := h.signatures.LookupByToken(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicketForSignature(ticket))
}

// Complete accepts the customer's signature.
func (h *SignatureHandler) Complete(c *fiber.Ctx) error {
	var req dto.CompleteSignatureRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.signatures.CompleteSignature(c.UserContext(), c.Params("token"), req.SignatureData)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicketForSignature(ticket))
}
