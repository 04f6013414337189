package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cityworks/addressing-service/internal/domain"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Stages     []domain.WorkflowStage
	Priorities []domain.TicketPriority
	AssignedTo *string
	County     *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence. Update writes the ticket
// fields and appended history rows in one transaction guarded by the version
// column; it is the atomic-update contract the workflow engine depends on.
type TicketRepository interface {
	Insert(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	GetBySignatureToken(ctx context.Context, token string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, appended []domain.HistoryEntry) error
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        t.id, t.ticket_number, t.status, t.workflow_stage, t.priority,
        t.first_name, t.last_name, t.email, t.mobile_phone, t.landline_phone,
        t.request_type, t.existing_address, t.additional_info,
        t.premise_type, t.property_id, t.county, t.street_name,
        t.closest_intersection, t.subdivision, t.lot_number,
        t.x_coordinate, t.y_coordinate,
        t.approved_address, t.address_created, t.address_verified, t.verification_note,
        t.assigned_to, a.name, a.email,
        t.created_by, c.name, c.email,
        t.due_date, t.time_to_resolve,
        t.signature_token, t.signature_requested, t.signature_requested_at,
        t.signature_requested_by, t.signature_completed, t.signature_completed_at,
        t.address_letter_path,
        t.version, t.created_at, t.updated_at`

const ticketJoins = `
        FROM tickets t
        LEFT JOIN staff_members a ON a.id = t.assigned_to
        LEFT JOIN staff_members c ON c.id = t.created_by`

func (r *ticketRepository) Insert(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (
            ticket_number, status, workflow_stage, priority,
            first_name, last_name, email, mobile_phone, landline_phone,
            request_type, existing_address, additional_info,
            premise_type, property_id, county, street_name,
            closest_intersection, subdivision, lot_number,
            x_coordinate, y_coordinate,
            approved_address, address_created, address_verified, verification_note,
            assigned_to, created_by, due_date, time_to_resolve
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
        RETURNING id, version, created_at, updated_at`

	var assignedTo, createdBy *string
	if ticket.AssignedTo != nil {
		assignedTo = &ticket.AssignedTo.ID
	}
	if ticket.CreatedBy != nil {
		createdBy = &ticket.CreatedBy.ID
	}

	err := r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Status,
		ticket.WorkflowStage,
		ticket.Priority,
		ticket.FirstName,
		ticket.LastName,
		ticket.Email,
		ticket.MobilePhone,
		ticket.LandlinePhone,
		ticket.RequestType,
		ticket.ExistingAddress,
		ticket.AdditionalInfo,
		ticket.PremiseType,
		ticket.PropertyID,
		ticket.County,
		ticket.StreetName,
		ticket.ClosestIntersection,
		ticket.Subdivision,
		ticket.LotNumber,
		ticket.XCoordinate,
		ticket.YCoordinate,
		ticket.ApprovedAddress,
		ticket.AddressCreated,
		ticket.AddressVerified,
		ticket.VerificationNote,
		assignedTo,
		createdBy,
		ticket.DueDate,
		ticket.TimeToResolve,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}

	for i := range ticket.History {
		ticket.History[i].TicketID = ticket.ID
		if err := insertHistory(ctx, r.pool, &ticket.History[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + ` WHERE t.id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + ` WHERE t.ticket_number=$1`
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) GetBySignatureToken(ctx context.Context, token string) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + ` WHERE t.signature_token=$1`
	return r.fetchSingle(ctx, query, token)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, apperrors.NewStorageError(err)
	}

	history, err := r.loadHistory(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.History = history
	return ticket, nil
}

// Update persists the ticket fields and appends history rows as one atomic
// unit. The WHERE version guard implements optimistic concurrency; zero rows
// affected means either a concurrent writer won or the ticket is gone.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, appended []domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE tickets SET
            status=$1, workflow_stage=$2, priority=$3,
            approved_address=$4, address_created=$5, address_verified=$6, verification_note=$7,
            assigned_to=$8, due_date=$9, time_to_resolve=$10,
            signature_token=$11, signature_requested=$12, signature_requested_at=$13,
            signature_requested_by=$14, signature_completed=$15, signature_completed_at=$16,
            address_letter_path=$17,
            version=version+1, updated_at=NOW()
        WHERE id=$18 AND version=$19`

	var assignedTo *string
	if ticket.AssignedTo != nil {
		assignedTo = &ticket.AssignedTo.ID
	}

	cmd, err := tx.Exec(ctx, query,
		ticket.Status,
		ticket.WorkflowStage,
		ticket.Priority,
		ticket.ApprovedAddress,
		ticket.AddressCreated,
		ticket.AddressVerified,
		ticket.VerificationNote,
		assignedTo,
		ticket.DueDate,
		ticket.TimeToResolve,
		ticket.SignatureToken,
		ticket.SignatureRequested,
		ticket.SignatureRequestedAt,
		ticket.SignatureRequestedBy,
		ticket.SignatureCompleted,
		ticket.SignatureCompletedAt,
		ticket.AddressLetterPath,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return apperrors.NewStorageError(err)
		}
		if !exists {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
	}

	for i := range appended {
		appended[i].TicketID = ticket.ID
		if err := insertHistory(ctx, tx, &appended[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewStorageError(err)
	}
	ticket.Version = expectedVersion + 1
	return nil
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + `
        WHERE t.status NOT IN ($1, $2) AND t.due_date IS NOT NULL
        ORDER BY t.due_date ASC`
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusResolved, domain.TicketStatusClosed)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	appendIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, value := range values {
			args = append(args, value)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	}

	appendIn("t.status", asStrings(filter.Statuses))
	appendIn("t.workflow_stage", asStrings(filter.Stages))
	appendIn("t.priority", asStrings(filter.Priorities))

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if filter.County != nil {
		args = append(args, *filter.County)
		clauses = append(clauses, fmt.Sprintf("t.county=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(t.first_name) LIKE %s OR LOWER(t.last_name) LIKE %s OR LOWER(t.street_name) LIKE %s OR t.ticket_number LIKE %s)",
			placeholder, placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, ticketJoins, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) loadHistory(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, seq, workflow_stage, status, assigned_to, notes, action_by, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Seq,
			&entry.WorkflowStage,
			&entry.Status,
			&entry.AssignedTo,
			&entry.Notes,
			&entry.ActionBy,
			&entry.Timestamp,
		); err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return result, nil
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// insertHistory appends one audit row. There is deliberately no update or
// delete path for ticket_history anywhere in this package.
func insertHistory(ctx context.Context, q execer, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, seq, workflow_stage, status, assigned_to, notes, action_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	if err := q.QueryRow(ctx, query,
		entry.TicketID,
		entry.Seq,
		entry.WorkflowStage,
		entry.Status,
		entry.AssignedTo,
		entry.Notes,
		entry.ActionBy,
		entry.Timestamp,
	).Scan(&entry.ID); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket        domain.Ticket
		assignedTo    *string
		assigneeName  *string
		assigneeEmail *string
		createdBy     *string
		creatorName   *string
		creatorEmail  *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Status,
		&ticket.WorkflowStage,
		&ticket.Priority,
		&ticket.FirstName,
		&ticket.LastName,
		&ticket.Email,
		&ticket.MobilePhone,
		&ticket.LandlinePhone,
		&ticket.RequestType,
		&ticket.ExistingAddress,
		&ticket.AdditionalInfo,
		&ticket.PremiseType,
		&ticket.PropertyID,
		&ticket.County,
		&ticket.StreetName,
		&ticket.ClosestIntersection,
		&ticket.Subdivision,
		&ticket.LotNumber,
		&ticket.XCoordinate,
		&ticket.YCoordinate,
		&ticket.ApprovedAddress,
		&ticket.AddressCreated,
		&ticket.AddressVerified,
		&ticket.VerificationNote,
		&assignedTo,
		&assigneeName,
		&assigneeEmail,
		&createdBy,
		&creatorName,
		&creatorEmail,
		&ticket.DueDate,
		&ticket.TimeToResolve,
		&ticket.SignatureToken,
		&ticket.SignatureRequested,
		&ticket.SignatureRequestedAt,
		&ticket.SignatureRequestedBy,
		&ticket.SignatureCompleted,
		&ticket.SignatureCompletedAt,
		&ticket.AddressLetterPath,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.AssignedTo = staffRef(assignedTo, assigneeName, assigneeEmail)
	ticket.CreatedBy = staffRef(createdBy, creatorName, creatorEmail)
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return result, nil
}

func staffRef(id, name, email *string) *domain.StaffRef {
	if id == nil {
		return nil
	}
	ref := &domain.StaffRef{ID: *id}
	if name != nil {
		ref.Name = *name
	}
	if email != nil {
		ref.Email = *email
	}
	return ref
}

func asStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// mapWriteError normalizes pgx write failures into the DomainError taxonomy.
// Unique violations carry the offending column so callers can retry
// ticket-number generation.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		field := "unknown"
		if strings.Contains(pgErr.ConstraintName, "ticket_number") {
			field = "ticket_number"
		} else if strings.Contains(pgErr.ConstraintName, "email") {
			field = "email"
		}
		return apperrors.NewConflict("duplicate value", map[string]any{"field": field})
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", nil)
	}
	return apperrors.NewStorageError(err)
}
