package domain

import "time"

// Department enumerates the organizational units staff belong to.
type Department string

const (
	DepartmentFrontDesk Department = "Front Desk"
	DepartmentGIS       Department = "GIS"
	DepartmentAdmin     Department = "Admin"
	DepartmentOther     Department = "Other"
)

// StaffRole enumerates operator roles within a department.
type StaffRole string

const (
	StaffRoleGISStaff    StaffRole = "gis_staff"
	StaffRoleGISVerifier StaffRole = "gis_verifier"
	StaffRoleFrontDesk   StaffRole = "front_desk"
	StaffRoleAdmin       StaffRole = "admin"
)

// Staff models an operator who can be assigned tickets. The workflow engine
// reads staff records but never mutates them.
type Staff struct {
	ID                       string
	Name                     string
	Email                    string
	PasswordHash             string
	Department               Department
	Role                     StaffRole
	IsAvailableForAssignment bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Ref returns the display-friendly weak reference for this staff member.
func (s *Staff) Ref() *StaffRef {
	if s == nil {
		return nil
	}
	return &StaffRef{ID: s.ID, Name: s.Name, Email: s.Email}
}
