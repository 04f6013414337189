package dto

import (
	"time"

	"github.com/cityworks/addressing-service/internal/domain"
)

// LoginRequest is the staff credential payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Staff     StaffResponse `json:"staff"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// CreateStaffRequest registers a staff member.
type CreateStaffRequest struct {
	Name                     string `json:"name"`
	Email                    string `json:"email"`
	Password                 string `json:"password"`
	Department               string `json:"department"`
	Role                     string `json:"role"`
	IsAvailableForAssignment bool   `json:"isAvailableForAssignment"`
}

// ToStaff maps the request to the domain model. The password is handled
// separately by the auth service.
func (r CreateStaffRequest) ToStaff() *domain.Staff {
	return &domain.Staff{
		Name:                     r.Name,
		Email:                    r.Email,
		Department:               domain.Department(r.Department),
		Role:                     domain.StaffRole(r.Role),
		IsAvailableForAssignment: r.IsAvailableForAssignment,
	}
}

// UpdateStaffRequest updates mutable staff attributes.
type UpdateStaffRequest struct {
	Name                     *string `json:"name"`
	Department               *string `json:"department"`
	Role                     *string `json:"role"`
	IsAvailableForAssignment *bool   `json:"isAvailableForAssignment"`
}

// StaffResponse is the staff view. Password hashes never leave the server.
type StaffResponse struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	Email                    string    `json:"email"`
	Department               string    `json:"department"`
	Role                     string    `json:"role"`
	IsAvailableForAssignment bool      `json:"isAvailableForAssignment"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// FromStaff builds the response view.
func FromStaff(s *domain.Staff) StaffResponse {
	return StaffResponse{
		ID:                       s.ID,
		Name:                     s.Name,
		Email:                    s.Email,
		Department:               string(s.Department),
		Role:                     string(s.Role),
		IsAvailableForAssignment: s.IsAvailableForAssignment,
		CreatedAt:                s.CreatedAt,
		UpdatedAt:                s.UpdatedAt,
	}
}

// FromStaffList maps a staff slice.
func FromStaffList(staff []domain.Staff) []StaffResponse {
	result := make([]StaffResponse, 0, len(staff))
	for i := range staff {
		result = append(result, FromStaff(&staff[i]))
	}
	return result
}
