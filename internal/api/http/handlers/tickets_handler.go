package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cityworks/addressing-service/internal/api/dto"
	"github.com/cityworks/addressing-service/internal/auth"
	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/repository"
	"github.com/cityworks/addressing-service/internal/service"
	"github.com/cityworks/addressing-service/internal/workflow"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// TicketsHandler exposes the staff-facing ticket API.
type TicketsHandler struct {
	engine     *workflow.Engine
	tickets    repository.TicketRepository
	signatures *service.SignatureService
	updater    *workflow.PriorityUpdater
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(
	engine *workflow.Engine,
	tickets repository.TicketRepository,
	signatures *service.SignatureService,
	updater *workflow.PriorityUpdater,
) *TicketsHandler {
	return &TicketsHandler{engine: engine, tickets: tickets, signatures: signatures, updater: updater}
}

// Create takes an intake request and runs it through the workflow engine.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.engine.CreateTicket(c.UserContext(), auth.ActorID(c), req.ToIntakeInput())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromTicket(ticket))
}

// List returns tickets matching query filters.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	for _, status := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(status))
	}
	for _, stage := range splitQuery(c.Query("stage")) {
		filter.Stages = append(filter.Stages, domain.WorkflowStage(stage))
	}
	for _, priority := range splitQuery(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(priority))
	}
	if assignee := c.Query("assignedTo"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if county := c.Query("county"); county != "" {
		filter.County = &county
	}
	if term := c.Query("search"); term != "" {
		filter.SearchTerm = &term
	}

	tickets, err := h.tickets.ListWithFilter(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tickets": dto.FromTickets(tickets), "count": len(tickets)})
}

// Get returns one ticket with its full history.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// GetByNumber looks a ticket up by its human-facing number.
func (h *TicketsHandler) GetByNumber(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Transition applies a workflow stage change.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	var req dto.TransitionTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.engine.Transition(c.UserContext(), c.Params("id"), auth.ActorID(c), workflow.TransitionInput{
		TargetStage:      domain.WorkflowStage(req.TargetStage),
		Note:             req.Note,
		ApprovedAddress:  req.ApprovedAddress,
		VerificationNote: req.VerificationNote,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Close sets the Closed status on a completed ticket.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, err := h.engine.Close(c.UserContext(), c.Params("id"), auth.ActorID(c), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// RequestSignature starts the customer signature sub-flow.
func (h *TicketsHandler) RequestSignature(c *fiber.Ctx) error {
	ticket, err := h.signatures.RequestSignature(c.UserContext(), c.Params("id"), auth.ActorID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// ResendSignature re-sends the signature link with a fresh token.
func (h *TicketsHandler) ResendSignature(c *fiber.Ctx) error {
	ticket, err := h.signatures.ResendSignature(c.UserContext(), c.Params("id"), auth.ActorID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// TriggerPriorityUpdate runs the batch priority recalculation on demand.
func (h *TicketsHandler) TriggerPriorityUpdate(c *fiber.Ctx) error {
	changed, err := h.updater.Run(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"changed": changed})
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
