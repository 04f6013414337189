package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cityworks/addressing-service/internal/api/dto"
	"github.com/cityworks/addressing-service/internal/auth"
	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/repository"
	"github.com/cityworks/addressing-service/internal/service"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// StaffHandler exposes staff account management and authentication.
type StaffHandler struct {
	staff repository.StaffRepository
	auth  *service.AuthService
}

// NewStaffHandler constructs the handler.
func NewStaffHandler(staff repository.StaffRepository, authSvc *service.AuthService) *StaffHandler {
	return &StaffHandler{staff: staff, auth: authSvc}
}

// Login authenticates a staff member.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Staff:     dto.FromStaff(result.Staff),
	})
}

// ChangePassword rotates the authenticated caller's password.
func (h *StaffHandler) ChangePassword(c *fiber.Ctx) error {
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	if err := h.auth.ChangePassword(c.UserContext(), auth.ActorID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Create registers a new staff member.
func (h *StaffHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	staff := req.ToStaff()
	if err := h.auth.Register(c.UserContext(), staff, req.Password); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromStaff(staff))
}

// List returns staff matching query filters.
func (h *StaffHandler) List(c *fiber.Ctx) error {
	filter := repository.StaffFilter{
		Limit:  parseIntQuery(c, "limit", 100),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if dept := c.Query("department"); dept != "" {
		department := domain.Department(dept)
		filter.Department = &department
	}
	if role := c.Query("role"); role != "" {
		staffRole := domain.StaffRole(role)
		filter.Role = &staffRole
	}
	if avail := c.Query("available"); avail != "" {
		available := avail == "true"
		filter.Available = &available
	}

	staff, err := h.staff.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"staff": dto.FromStaffList(staff), "count": len(staff)})
}

// Get returns one staff member.
func (h *StaffHandler) Get(c *fiber.Ctx) error {
	staff, err := h.staff.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.FromStaff(staff))
}

// Update modifies mutable staff attributes.
func (h *StaffHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	staff, err := h.staff.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if req.Name != nil {
		staff.Name = *req.Name
	}
	if req.Department != nil {
		staff.Department = domain.Department(*req.Department)
	}
	if req.Role != nil {
		staff.Role = domain.StaffRole(*req.Role)
	}
	if req.IsAvailableForAssignment != nil {
		staff.IsAvailableForAssignment = *req.IsAvailableForAssignment
	}

	if err := h.staff.Update(c.UserContext(), staff); err != nil {
		return err
	}
	return c.JSON(dto.FromStaff(staff))
}
