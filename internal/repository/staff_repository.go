package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cityworks/addressing-service/internal/domain"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Department *domain.Department
	Role       *domain.StaffRole
	Available  *bool
	Limit      int
	Offset     int
}

// StaffRepository handles persistence for staff members and doubles as the
// workflow engine's staff directory.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.Staff) error
	Update(ctx context.Context, staff *domain.Staff) error
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
	GetByEmail(ctx context.Context, email string) (*domain.Staff, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.Staff, error)
	FindAvailable(ctx context.Context, department domain.Department, role *domain.StaffRole, excludeIDs []string) ([]domain.Staff, error)
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffColumns = `id, name, email, password_hash, department, role, is_available_for_assignment, created_at, updated_at`

func (r *staffRepository) Create(ctx context.Context, staff *domain.Staff) error {
	const query = `
        INSERT INTO staff_members (name, email, password_hash, department, role, is_available_for_assignment)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	if err := r.pool.QueryRow(ctx, query,
		staff.Name,
		staff.Email,
		staff.PasswordHash,
		staff.Department,
		staff.Role,
		staff.IsAvailableForAssignment,
	).Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *staffRepository) Update(ctx context.Context, staff *domain.Staff) error {
	const query = `
        UPDATE staff_members
        SET name=$1, email=$2, password_hash=$3, department=$4, role=$5, is_available_for_assignment=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		staff.Name,
		staff.Email,
		staff.PasswordHash,
		staff.Department,
		staff.Role,
		staff.IsAvailableForAssignment,
		staff.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound("staff", map[string]any{"staff_id": staff.ID})
	}
	return nil
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	return r.fetchSingle(ctx, `SELECT `+staffColumns+` FROM staff_members WHERE id=$1`, id)
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*domain.Staff, error) {
	return r.fetchSingle(ctx, `SELECT `+staffColumns+` FROM staff_members WHERE email=$1`, email)
}

func (r *staffRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Staff, error) {
	var staff domain.Staff
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&staff.ID,
		&staff.Name,
		&staff.Email,
		&staff.PasswordHash,
		&staff.Department,
		&staff.Role,
		&staff.IsAvailableForAssignment,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", nil)
		}
		return nil, apperrors.NewStorageError(err)
	}
	return &staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_members`
	args := []any{}
	clauses := []string{}

	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Available != nil {
		args = append(args, *filter.Available)
		clauses = append(clauses, fmt.Sprintf("is_available_for_assignment=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()
	return scanStaff(rows)
}

// FindAvailable returns assignable staff in a department, optionally narrowed
// to a role, excluding the given ids. Used by the assignment selector.
func (r *staffRepository) FindAvailable(ctx context.Context, department domain.Department, role *domain.StaffRole, excludeIDs []string) ([]domain.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_members
        WHERE department=$1 AND is_available_for_assignment=TRUE`
	args := []any{department}

	if role != nil {
		args = append(args, *role)
		query += fmt.Sprintf(" AND role=$%d", len(args))
	}
	for _, id := range excludeIDs {
		args = append(args, id)
		query += fmt.Sprintf(" AND id<>$%d", len(args))
	}
	query += " ORDER BY name ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()
	return scanStaff(rows)
}

func scanStaff(rows pgx.Rows) ([]domain.Staff, error) {
	var result []domain.Staff
	for rows.Next() {
		var staff domain.Staff
		if err := rows.Scan(
			&staff.ID,
			&staff.Name,
			&staff.Email,
			&staff.PasswordHash,
			&staff.Department,
			&staff.Role,
			&staff.IsAvailableForAssignment,
			&staff.CreatedAt,
			&staff.UpdatedAt,
		); err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		result = append(result, staff)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return result, nil
}
