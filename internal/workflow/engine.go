package workflow

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/events"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// TicketStore is the persistence contract the engine depends on. Update must
// persist the ticket fields and the appended history entries as one atomic
// unit, rejecting with a CONFLICT error when expectedVersion no longer
// matches the stored row.
type TicketStore interface {
	Insert(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, appended []domain.HistoryEntry) error
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
}

// StaffDirectory queries assignable staff. Role may be nil to match any role
// within the department.
type StaffDirectory interface {
	FindAvailable(ctx context.Context, department domain.Department, role *domain.StaffRole, excludeIDs []string) ([]domain.Staff, error)
}

// Engine is the ticket workflow state machine. Each operation is a single
// logical unit of work: load, validate, compute, atomic write. The engine
// holds no per-ticket state; concurrent transitions on the same ticket are
// serialized by the store's version check.
type Engine struct {
	tickets    TicketStore
	staff      StaffDirectory
	selector   *Selector
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
	intn       func(n int) int
}

// Dependencies bundles engine collaborators.
type Dependencies struct {
	TicketStore TicketStore
	Staff       StaffDirectory
	Selector    *Selector
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger

	// Clock and Rand override time and randomness, pinned by tests.
	Clock func() time.Time
	Rand  func(n int) int
}

// NewEngine constructs the workflow engine.
func NewEngine(deps Dependencies) *Engine {
	engine := &Engine{
		tickets:    deps.TicketStore,
		staff:      deps.Staff,
		selector:   deps.Selector,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      deps.Clock,
		intn:       deps.Rand,
	}
	if engine.selector == nil {
		engine.selector = NewSelector()
	}
	if engine.logger == nil {
		engine.logger = zap.NewNop()
	}
	if engine.clock == nil {
		engine.clock = time.Now
	}
	if engine.intn == nil {
		engine.intn = rand.Intn
	}
	return engine
}

// transitionTable lists the target stages reachable from each stage. The
// Completed row covers reopening; closing is status-only and handled by Close.
var transitionTable = map[domain.WorkflowStage][]domain.WorkflowStage{
	domain.StageFrontDesk:      {domain.StageAddressing},
	domain.StageAddressing:     {domain.StageVerification},
	domain.StageVerification:   {domain.StageReadyToContact, domain.StageAddressing},
	domain.StageReadyToContact: {domain.StageCompleted},
	domain.StageCompleted:      {domain.StageAddressing, domain.StageVerification},
}

func stageAllows(from, to domain.WorkflowStage) bool {
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IntakeInput is the Front Desk intake payload for a new ticket.
type IntakeInput struct {
	FirstName     string
	LastName      string
	Email         string
	MobilePhone   string
	LandlinePhone string

	RequestType     domain.RequestType
	ExistingAddress string
	AdditionalInfo  string

	PremiseType         domain.PremiseType
	PropertyID          string
	County              string
	StreetName          string
	ClosestIntersection string
	Subdivision         string
	LotNumber           string
	XCoordinate         *float64
	YCoordinate         *float64

	// Priority is an initial hint only; the priority updater overwrites it.
	Priority domain.TicketPriority
}

// TransitionInput parameterizes a stage transition request.
type TransitionInput struct {
	TargetStage      domain.WorkflowStage
	Note             string
	ApprovedAddress  string
	VerificationNote string
}

const (
	dueDateBusinessDays  = 5
	numberingMaxAttempts = 5
)

// CreateTicket validates intake data, computes due date and ticket number,
// persists the ticket, and immediately performs the implicit
// FrontDesk -> Addressing auto-assignment transition. The returned ticket
// carries exactly one history entry recording that transition.
func (e *Engine) CreateTicket(ctx context.Context, actorID string, in IntakeInput) (*domain.Ticket, error) {
	if err := validateIntake(in); err != nil {
		return nil, err
	}

	now := e.clock()
	priority := in.Priority
	switch priority {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh, domain.TicketPriorityCritical:
	default:
		priority = domain.TicketPriorityMedium
	}

	ticket := &domain.Ticket{
		TicketNumber:        TicketNumber(now),
		Status:              domain.TicketStatusInProgress,
		WorkflowStage:       domain.StageFrontDesk,
		Priority:            priority,
		FirstName:           strings.TrimSpace(in.FirstName),
		LastName:            strings.TrimSpace(in.LastName),
		Email:               strings.TrimSpace(in.Email),
		MobilePhone:         normalizePhone(in.MobilePhone),
		LandlinePhone:       normalizePhone(in.LandlinePhone),
		RequestType:         in.RequestType,
		ExistingAddress:     strings.TrimSpace(in.ExistingAddress),
		AdditionalInfo:      strings.TrimSpace(in.AdditionalInfo),
		PremiseType:         in.PremiseType,
		PropertyID:          in.PropertyID,
		County:              in.County,
		StreetName:          strings.TrimSpace(in.StreetName),
		ClosestIntersection: in.ClosestIntersection,
		Subdivision:         in.Subdivision,
		LotNumber:           in.LotNumber,
		XCoordinate:         *in.XCoordinate,
		YCoordinate:         *in.YCoordinate,
		CreatedBy:           &domain.StaffRef{ID: actorOrSystem(actorID)},
		DueDate:             AddBusinessDays(now, dueDateBusinessDays),
		TimeToResolve:       dueDateBusinessDays,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := e.insertWithNumberRetry(ctx, ticket, now); err != nil {
		return nil, err
	}

	e.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorOrSystem(actorID),
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			RequestType:  ticket.RequestType,
			Priority:     ticket.Priority,
			DueDate:      ticket.DueDate,
		},
	})

	assigned, err := e.Transition(ctx, ticket.ID, actorID, TransitionInput{
		TargetStage: domain.StageAddressing,
		Note:        "Ticket created",
	})
	if err != nil {
		// The ticket exists; leaving it at Front Desk is recoverable by a
		// manual transition, so surface the ticket rather than the error.
		e.logger.Warn("implicit addressing transition failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return ticket, nil
	}
	return assigned, nil
}

func (e *Engine) insertWithNumberRetry(ctx context.Context, ticket *domain.Ticket, createdAt time.Time) error {
	var err error
	for attempt := 0; attempt < numberingMaxAttempts; attempt++ {
		if attempt > 0 {
			ticket.TicketNumber = TicketNumberWithSuffix(createdAt, e.intn(100))
		}
		err = e.tickets.Insert(ctx, ticket)
		if err == nil {
			return nil
		}
		if apperrors.ConflictField(err) != "ticket_number" {
			return err
		}
	}
	return err
}

// Transition validates and applies a stage transition, producing exactly one
// history entry and persisting everything atomically against the version the
// ticket was loaded at. Auto-assignment finding nobody is not fatal; the
// outcome is recorded in the history note instead.
func (e *Engine) Transition(ctx context.Context, ticketID, actorID string, in TransitionInput) (*domain.Ticket, error) {
	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	from := ticket.WorkflowStage
	target := in.TargetStage
	if !stageAllows(from, target) {
		return nil, apperrors.NewInvalidTransition(string(from), string(target))
	}

	now := e.clock()
	actor := actorOrSystem(actorID)
	expectedVersion := ticket.Version
	previousAssignee := ticket.AssignedToID()

	notes := []string{}
	if trimmed := strings.TrimSpace(in.Note); trimmed != "" {
		notes = append(notes, trimmed)
	}

	var assign *assignmentPlan

	switch {
	case from == domain.StageFrontDesk && target == domain.StageAddressing:
		ticket.Status = domain.TicketStatusInProgress
		assign = &assignmentPlan{department: domain.DepartmentGIS, role: rolePtr(domain.StaffRoleGISStaff), broaden: true}

	case from == domain.StageAddressing && target == domain.StageVerification:
		approved := strings.TrimSpace(in.ApprovedAddress)
		if approved == "" {
			approved = strings.TrimSpace(ticket.ApprovedAddress)
		}
		if approved == "" {
			return nil, apperrors.NewValidationError("approved address is required before verification", nil)
		}
		ticket.ApprovedAddress = approved
		ticket.Status = domain.TicketStatusInProgress
		ticket.AddressCreated = true
		// Separation of duties: the addresser must not verify their own work.
		assign = &assignmentPlan{department: domain.DepartmentGIS, role: rolePtr(domain.StaffRoleGISVerifier), broaden: true, exclude: previousAssignee}

	case from == domain.StageVerification && target == domain.StageReadyToContact:
		ticket.AddressVerified = true
		ticket.VerificationNote = ""
		assign = &assignmentPlan{department: domain.DepartmentFrontDesk, role: rolePtr(domain.StaffRoleFrontDesk), clearWhenUnavailable: true}

	case from == domain.StageVerification && target == domain.StageAddressing:
		rejection := strings.TrimSpace(in.VerificationNote)
		if rejection == "" {
			return nil, apperrors.NewValidationError("rejecting a ticket back to addressing requires a verification note", nil)
		}
		ticket.VerificationNote = rejection
		ticket.AddressCreated = false
		ticket.Status = domain.TicketStatusInProgress
		notes = append(notes, "Verification rejected: "+rejection)
		assign = &assignmentPlan{department: domain.DepartmentGIS, role: rolePtr(domain.StaffRoleGISStaff), broaden: true, exclude: previousAssignee}

	case from == domain.StageReadyToContact && target == domain.StageCompleted:
		ticket.Status = domain.TicketStatusResolved

	case from == domain.StageCompleted:
		if strings.TrimSpace(in.Note) == "" {
			return nil, apperrors.NewValidationError("reopening a ticket requires a note explaining the reason", nil)
		}
		ticket.Status = domain.TicketStatusInProgress
		ticket.AddressVerified = false
		if target == domain.StageAddressing {
			ticket.AddressCreated = false
			assign = &assignmentPlan{department: domain.DepartmentGIS, role: rolePtr(domain.StaffRoleGISStaff), broaden: true, exclude: previousAssignee}
		} else {
			assign = &assignmentPlan{department: domain.DepartmentGIS, role: rolePtr(domain.StaffRoleGISVerifier), broaden: true, exclude: previousAssignee}
		}
	}

	if assign != nil {
		selected, assignNote := e.runAssignment(ctx, assign)
		if selected != nil {
			ticket.AssignedTo = selected.Ref()
		} else if assign.clearWhenUnavailable {
			ticket.AssignedTo = nil
		}
		if assignNote != "" {
			notes = append(notes, assignNote)
		}
	}

	if len(notes) == 0 {
		notes = append(notes, "Transitioned to "+string(target))
	}

	ticket.WorkflowStage = target
	ticket.UpdatedAt = now

	entry := e.newHistoryEntry(ticket, target, strings.Join(notes, ". "), actor, now)
	if err := e.tickets.Update(ctx, ticket, expectedVersion, []domain.HistoryEntry{entry}); err != nil {
		return nil, err
	}
	ticket.History = append(ticket.History, entry)

	e.publish(ctx, events.Event{
		Type:     events.EventStageChanged,
		TicketID: ticket.ID,
		ActorID:  actor,
		Payload: events.StageChangedPayload{
			FromStage: from,
			ToStage:   target,
			Status:    ticket.Status,
			Note:      entry.Notes,
		},
	})
	if ticket.AssignedToID() != previousAssignee {
		payload := events.TicketAssignedPayload{Stage: target}
		if ticket.AssignedTo != nil {
			id := ticket.AssignedTo.ID
			payload.AssigneeID = &id
			payload.AssigneeName = ticket.AssignedTo.Name
		}
		e.publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  actor,
			Payload:  payload,
		})
	}

	return ticket, nil
}

// Close sets the Closed status without a stage change. Only tickets that
// have reached the Completed stage can be closed.
func (e *Engine) Close(ctx context.Context, ticketID, actorID, note string) (*domain.Ticket, error) {
	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.WorkflowStage != domain.StageCompleted {
		return nil, apperrors.NewInvalidTransition(string(ticket.WorkflowStage), string(domain.TicketStatusClosed))
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket already closed", map[string]any{"ticket_id": ticket.ID})
	}

	now := e.clock()
	actor := actorOrSystem(actorID)
	expectedVersion := ticket.Version
	if strings.TrimSpace(note) == "" {
		note = "Ticket closed"
	}

	ticket.Status = domain.TicketStatusClosed
	ticket.UpdatedAt = now

	entry := e.newHistoryEntry(ticket, domain.StageCompleted, note, actor, now)
	if err := e.tickets.Update(ctx, ticket, expectedVersion, []domain.HistoryEntry{entry}); err != nil {
		return nil, err
	}
	ticket.History = append(ticket.History, entry)

	e.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		ActorID:  actor,
		Payload:  events.TicketClosedPayload{Note: note},
	})
	return ticket, nil
}

type assignmentPlan struct {
	department domain.Department
	role       *domain.StaffRole
	// broaden widens the pool to the whole department when the role-specific
	// query comes back empty.
	broaden bool
	exclude string
	// clearWhenUnavailable drops the current assignee when nobody is found,
	// instead of leaving the previous assignee in place.
	clearWhenUnavailable bool
}

func (e *Engine) runAssignment(ctx context.Context, plan *assignmentPlan) (*domain.Staff, string) {
	pool, err := e.staff.FindAvailable(ctx, plan.department, plan.role, nil)
	if err != nil {
		e.logger.Warn("staff directory query failed", zap.Error(err))
		return nil, "No staff available for auto-assignment"
	}
	if len(pool) == 0 && plan.broaden && plan.role != nil {
		pool, err = e.staff.FindAvailable(ctx, plan.department, nil, nil)
		if err != nil {
			e.logger.Warn("staff directory fallback query failed", zap.Error(err))
			return nil, "No staff available for auto-assignment"
		}
	}

	selected := e.selector.Select(pool, plan.exclude)
	if selected == nil {
		return nil, "No staff available for auto-assignment"
	}
	return selected, "Ticket automatically assigned to " + selected.Name
}

func (e *Engine) newHistoryEntry(ticket *domain.Ticket, stage domain.WorkflowStage, notes, actor string, at time.Time) domain.HistoryEntry {
	status := ticket.Status
	entry := domain.HistoryEntry{
		TicketID:      ticket.ID,
		Seq:           len(ticket.History) + 1,
		WorkflowStage: stage,
		Status:        &status,
		Notes:         notes,
		ActionBy:      actor,
		Timestamp:     at,
	}
	if ticket.AssignedTo != nil {
		id := ticket.AssignedTo.ID
		entry.AssignedTo = &id
	}
	return entry
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.clock()
	}
	_ = e.dispatcher.Publish(ctx, event)
}

func validateIntake(in IntakeInput) error {
	missing := []string{}
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	require("firstName", in.FirstName)
	require("lastName", in.LastName)
	require("email", in.Email)
	require("requestType", string(in.RequestType))
	require("premiseType", string(in.PremiseType))
	require("county", in.County)
	require("streetName", in.StreetName)
	if in.XCoordinate == nil {
		missing = append(missing, "xCoordinate")
	}
	if in.YCoordinate == nil {
		missing = append(missing, "yCoordinate")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("required intake fields are missing", map[string]any{"fields": missing})
	}
	return nil
}

// normalizePhone keeps only valid 10-digit phone numbers, dropping anything
// else rather than failing intake.
func normalizePhone(raw string) *string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) != 10 {
		return nil
	}
	return &digits
}

func actorOrSystem(actorID string) string {
	if strings.TrimSpace(actorID) == "" {
		return domain.SystemActorID
	}
	return actorID
}

func rolePtr(role domain.StaffRole) *domain.StaffRole {
	return &role
}
