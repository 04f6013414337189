package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/events"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// fakeTicketStore implements TicketStore in memory with the same version
// semantics as the Postgres repository.
type fakeTicketStore struct {
	tickets map[string]*domain.Ticket
	numbers map[string]bool
	nextID  int

	// rejectInserts fails that many inserts with a ticket_number conflict.
	rejectInserts int
	insertCalls   int

	// bumpVersionOnRead simulates a concurrent writer landing between the
	// engine's load and its update.
	bumpVersionOnRead bool
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		tickets: map[string]*domain.Ticket{},
		numbers: map[string]bool{},
	}
}

func (s *fakeTicketStore) Insert(_ context.Context, ticket *domain.Ticket) error {
	s.insertCalls++
	if s.rejectInserts > 0 {
		s.rejectInserts--
		return apperrors.NewConflict("duplicate ticket number", map[string]any{"field": "ticket_number"})
	}
	if s.numbers[ticket.TicketNumber] {
		return apperrors.NewConflict("duplicate ticket number", map[string]any{"field": "ticket_number"})
	}
	s.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", s.nextID)
	ticket.Version = 1
	s.numbers[ticket.TicketNumber] = true
	s.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (s *fakeTicketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	stored, ok := s.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	loaded := copyTicket(stored)
	if s.bumpVersionOnRead {
		stored.Version++
	}
	return loaded, nil
}

func (s *fakeTicketStore) Update(_ context.Context, ticket *domain.Ticket, expectedVersion int64, appended []domain.HistoryEntry) error {
	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	}
	if stored.Version != expectedVersion {
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
	}
	updated := copyTicket(ticket)
	updated.Version = expectedVersion + 1
	updated.History = append(append([]domain.HistoryEntry{}, stored.History...), appended...)
	s.tickets[ticket.ID] = updated
	ticket.Version = updated.Version
	return nil
}

func (s *fakeTicketStore) ListOpen(_ context.Context) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.IsOpen() && !ticket.DueDate.IsZero() {
			result = append(result, *copyTicket(ticket))
		}
	}
	return result, nil
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	clone.History = append([]domain.HistoryEntry{}, t.History...)
	if t.AssignedTo != nil {
		ref := *t.AssignedTo
		clone.AssignedTo = &ref
	}
	if t.CreatedBy != nil {
		ref := *t.CreatedBy
		clone.CreatedBy = &ref
	}
	return &clone
}

// fakeStaffDirectory serves canned pools keyed by department and role.
type fakeStaffDirectory struct {
	pools map[string][]domain.Staff
}

func newFakeStaffDirectory() *fakeStaffDirectory {
	return &fakeStaffDirectory{pools: map[string][]domain.Staff{}}
}

func poolKey(department domain.Department, role *domain.StaffRole) string {
	if role == nil {
		return string(department) + "|*"
	}
	return string(department) + "|" + string(*role)
}

func (d *fakeStaffDirectory) add(department domain.Department, role domain.StaffRole, ids ...string) {
	for _, id := range ids {
		member := domain.Staff{
			ID:                       id,
			Name:                     "Staff " + id,
			Department:               department,
			Role:                     role,
			IsAvailableForAssignment: true,
		}
		d.pools[poolKey(department, &role)] = append(d.pools[poolKey(department, &role)], member)
		d.pools[poolKey(department, nil)] = append(d.pools[poolKey(department, nil)], member)
	}
}

func (d *fakeStaffDirectory) FindAvailable(_ context.Context, department domain.Department, role *domain.StaffRole, _ []string) ([]domain.Staff, error) {
	return d.pools[poolKey(department, role)], nil
}

type engineFixture struct {
	engine *Engine
	store  *fakeTicketStore
	staff  *fakeStaffDirectory
	events []events.Event
	now    time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	fx := &engineFixture{
		store: newFakeTicketStore(),
		staff: newFakeStaffDirectory(),
		now:   time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC), // Monday
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range []events.EventType{
		events.EventTicketCreated, events.EventStageChanged,
		events.EventTicketAssigned, events.EventTicketClosed,
	} {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			fx.events = append(fx.events, event)
			return nil
		})
	}

	fx.engine = NewEngine(Dependencies{
		TicketStore: fx.store,
		Staff:       fx.staff,
		Selector:    NewSelectorWithRand(func(int) int { return 0 }),
		Dispatcher:  dispatcher,
		Clock:       func() time.Time { return fx.now },
		Rand:        func(int) int { return 7 },
	})
	return fx
}

func validIntake() IntakeInput {
	x, y := -84.5, 33.9
	return IntakeInput{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane.doe@example.com",
		MobilePhone: "(555) 123-4567",
		RequestType: domain.RequestTypeNewAddress,
		PremiseType: domain.PremiseTypeResidence,
		County:      "Fulton",
		StreetName:  "Peachtree St",
		XCoordinate: &x,
		YCoordinate: &y,
	}
}

func TestCreateTicket(t *testing.T) {
	fx := newEngineFixture(t)
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISStaff, "gis-1")

	ticket, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.NoError(t, err)

	assert.Equal(t, "240115090000", ticket.TicketNumber)
	assert.Equal(t, domain.StageAddressing, ticket.WorkflowStage)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, time.Date(2024, time.January, 22, 9, 0, 0, 0, time.UTC), ticket.DueDate)
	assert.Equal(t, 5, ticket.TimeToResolve)

	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, "gis-1", ticket.AssignedTo.ID)

	require.Len(t, ticket.History, 1)
	entry := ticket.History[0]
	assert.Equal(t, 1, entry.Seq)
	assert.Equal(t, domain.StageAddressing, entry.WorkflowStage)
	assert.Equal(t, "frontdesk-1", entry.ActionBy)
	assert.Contains(t, entry.Notes, "Ticket created")
	assert.Contains(t, entry.Notes, "automatically assigned")

	require.NotNil(t, ticket.MobilePhone)
	assert.Equal(t, "5551234567", *ticket.MobilePhone)
}

func TestCreateTicketValidation(t *testing.T) {
	fx := newEngineFixture(t)

	in := validIntake()
	in.FirstName = ""
	in.County = ""
	in.XCoordinate = nil

	_, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", in)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	domainErr := apperrors.ToDomainError(err)
	fields, ok := domainErr.Details["fields"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"firstName", "county", "xCoordinate"}, fields)
	assert.Zero(t, fx.store.insertCalls)
}

func TestCreateTicketNumberCollisionRetry(t *testing.T) {
	fx := newEngineFixture(t)
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISStaff, "gis-1")
	fx.store.rejectInserts = 1

	ticket, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.NoError(t, err)
	assert.Equal(t, "240115090000-07", ticket.TicketNumber)
	assert.Equal(t, 2, fx.store.insertCalls)
}

func TestCreateTicketNumberRetryExhausted(t *testing.T) {
	fx := newEngineFixture(t)
	fx.store.rejectInserts = 10

	_, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Equal(t, numberingMaxAttempts, fx.store.insertCalls)
}

func TestCreateTicketWithoutStaffLeavesUnassigned(t *testing.T) {
	fx := newEngineFixture(t)

	ticket, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.NoError(t, err)

	assert.Equal(t, domain.StageAddressing, ticket.WorkflowStage)
	assert.Nil(t, ticket.AssignedTo)
	require.Len(t, ticket.History, 1)
	assert.Contains(t, ticket.History[0].Notes, "No staff available for auto-assignment")
}

func (fx *engineFixture) createAt(t *testing.T, stage domain.WorkflowStage) *domain.Ticket {
	t.Helper()
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISStaff, "gis-1", "gis-2")
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISVerifier, "verifier-1", "verifier-2")
	fx.staff.add(domain.DepartmentFrontDesk, domain.StaffRoleFrontDesk, "frontdesk-1")

	ticket, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.NoError(t, err)

	steps := []TransitionInput{
		{TargetStage: domain.StageVerification, ApprovedAddress: "123 Peachtree St"},
		{TargetStage: domain.StageReadyToContact},
		{TargetStage: domain.StageCompleted},
	}
	for _, step := range steps {
		if ticket.WorkflowStage == stage {
			return ticket
		}
		ticket, err = fx.engine.Transition(context.Background(), ticket.ID, "actor-1", step)
		require.NoError(t, err)
	}
	require.Equal(t, stage, ticket.WorkflowStage)
	return ticket
}

func TestTransitionToVerificationRequiresApprovedAddress(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageAddressing)

	_, err := fx.engine.Transition(context.Background(), ticket.ID, "gis-1", TransitionInput{
		TargetStage: domain.StageVerification,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	updated, err := fx.engine.Transition(context.Background(), ticket.ID, "gis-1", TransitionInput{
		TargetStage:     domain.StageVerification,
		ApprovedAddress: "123 Peachtree St",
	})
	require.NoError(t, err)
	assert.Equal(t, "123 Peachtree St", updated.ApprovedAddress)
	assert.True(t, updated.AddressCreated)
	assert.Equal(t, domain.StageVerification, updated.WorkflowStage)
}

func TestVerificationAssignmentExcludesAddresser(t *testing.T) {
	fx := newEngineFixture(t)
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISStaff, "gis-1")
	// The addresser also holds the verifier role; they must not verify
	// their own work while another verifier exists.
	fx.staff.pools[poolKey(domain.DepartmentGIS, rolePtr(domain.StaffRoleGISVerifier))] = []domain.Staff{
		{ID: "gis-1", Name: "Staff gis-1", IsAvailableForAssignment: true},
		{ID: "verifier-1", Name: "Staff verifier-1", IsAvailableForAssignment: true},
	}

	ticket, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.NoError(t, err)
	require.Equal(t, "gis-1", ticket.AssignedToID())

	updated, err := fx.engine.Transition(context.Background(), ticket.ID, "gis-1", TransitionInput{
		TargetStage:     domain.StageVerification,
		ApprovedAddress: "123 Peachtree St",
	})
	require.NoError(t, err)
	assert.Equal(t, "verifier-1", updated.AssignedToID())
}

func TestVerificationRejectionReturnsToAddressing(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageVerification)

	_, err := fx.engine.Transition(context.Background(), ticket.ID, "verifier-1", TransitionInput{
		TargetStage: domain.StageAddressing,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	updated, err := fx.engine.Transition(context.Background(), ticket.ID, "verifier-1", TransitionInput{
		TargetStage:      domain.StageAddressing,
		VerificationNote: "Parcel boundary mismatch",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAddressing, updated.WorkflowStage)
	assert.False(t, updated.AddressCreated)
	assert.Equal(t, "Parcel boundary mismatch", updated.VerificationNote)

	last := updated.History[len(updated.History)-1]
	assert.Contains(t, last.Notes, "Verification rejected: Parcel boundary mismatch")
}

func TestTransitionToReadyToContact(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageVerification)

	updated, err := fx.engine.Transition(context.Background(), ticket.ID, "verifier-1", TransitionInput{
		TargetStage: domain.StageReadyToContact,
	})
	require.NoError(t, err)
	assert.True(t, updated.AddressVerified)
	assert.Empty(t, updated.VerificationNote)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, "frontdesk-1", updated.AssignedTo.ID)
}

func TestReadyToContactClearsAssigneeWhenFrontDeskEmpty(t *testing.T) {
	fx := newEngineFixture(t)
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISStaff, "gis-1")
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISVerifier, "verifier-1")

	ticket, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.NoError(t, err)
	ticket, err = fx.engine.Transition(context.Background(), ticket.ID, "gis-1", TransitionInput{
		TargetStage:     domain.StageVerification,
		ApprovedAddress: "123 Peachtree St",
	})
	require.NoError(t, err)

	updated, err := fx.engine.Transition(context.Background(), ticket.ID, "verifier-1", TransitionInput{
		TargetStage: domain.StageReadyToContact,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)
	last := updated.History[len(updated.History)-1]
	assert.Contains(t, last.Notes, "No staff available for auto-assignment")
}

func TestTransitionToCompleted(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageReadyToContact)

	updated, err := fx.engine.Transition(context.Background(), ticket.ID, "frontdesk-1", TransitionInput{
		TargetStage: domain.StageCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, updated.WorkflowStage)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
}

func TestInvalidTransitionsRejectedWithoutSideEffects(t *testing.T) {
	allStages := []domain.WorkflowStage{
		domain.StageFrontDesk, domain.StageAddressing, domain.StageVerification,
		domain.StageReadyToContact, domain.StageCompleted,
	}

	for _, from := range allStages[1:] {
		for _, to := range allStages {
			if stageAllows(from, to) {
				continue
			}
			t.Run(string(from)+" to "+string(to), func(t *testing.T) {
				fx := newEngineFixture(t)
				ticket := fx.createAt(t, from)
				before, err := fx.store.GetByID(context.Background(), ticket.ID)
				require.NoError(t, err)

				_, err = fx.engine.Transition(context.Background(), ticket.ID, "actor-1", TransitionInput{
					TargetStage: to,
					Note:        "forced",
				})
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

				after, err := fx.store.GetByID(context.Background(), ticket.ID)
				require.NoError(t, err)
				assert.Equal(t, before, after)
			})
		}
	}
}

func TestHistoryGrowsByOnePerTransition(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageAddressing)
	prior := append([]domain.HistoryEntry{}, ticket.History...)

	steps := []TransitionInput{
		{TargetStage: domain.StageVerification, ApprovedAddress: "123 Peachtree St"},
		{TargetStage: domain.StageReadyToContact},
		{TargetStage: domain.StageCompleted},
	}
	for _, step := range steps {
		updated, err := fx.engine.Transition(context.Background(), ticket.ID, "actor-1", step)
		require.NoError(t, err)

		require.Len(t, updated.History, len(prior)+1)
		// Earlier entries are immutable; each write only appends.
		assert.Equal(t, prior, updated.History[:len(prior)])
		assert.Equal(t, len(prior)+1, updated.History[len(updated.History)-1].Seq)
		prior = append([]domain.HistoryEntry{}, updated.History...)
	}
}

func TestVersionConflictPropagates(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageAddressing)

	// Another writer bumps the version between load and update.
	fx.store.bumpVersionOnRead = true

	_, err := fx.engine.Transition(context.Background(), ticket.ID, "actor-1", TransitionInput{
		TargetStage:     domain.StageVerification,
		ApprovedAddress: "123 Peachtree St",
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestTransitionUnknownTicket(t *testing.T) {
	fx := newEngineFixture(t)

	_, err := fx.engine.Transition(context.Background(), "missing", "actor-1", TransitionInput{
		TargetStage: domain.StageAddressing,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestClose(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageCompleted)

	closed, err := fx.engine.Close(context.Background(), ticket.ID, "frontdesk-1", "Customer notified")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.Equal(t, domain.StageCompleted, closed.WorkflowStage)

	last := closed.History[len(closed.History)-1]
	assert.Equal(t, "Customer notified", last.Notes)

	// A second close is a conflict, not a silent no-op.
	_, err = fx.engine.Close(context.Background(), ticket.ID, "frontdesk-1", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestCloseRequiresCompletedStage(t *testing.T) {
	for _, stage := range []domain.WorkflowStage{
		domain.StageAddressing, domain.StageVerification, domain.StageReadyToContact,
	} {
		t.Run(string(stage), func(t *testing.T) {
			fx := newEngineFixture(t)
			ticket := fx.createAt(t, stage)

			_, err := fx.engine.Close(context.Background(), ticket.ID, "frontdesk-1", "")
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
		})
	}
}

func TestReopenCompletedTicket(t *testing.T) {
	fx := newEngineFixture(t)
	ticket := fx.createAt(t, domain.StageCompleted)

	_, err := fx.engine.Transition(context.Background(), ticket.ID, "frontdesk-1", TransitionInput{
		TargetStage: domain.StageAddressing,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	reopened, err := fx.engine.Transition(context.Background(), ticket.ID, "frontdesk-1", TransitionInput{
		TargetStage: domain.StageAddressing,
		Note:        "Customer reported the address is wrong",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAddressing, reopened.WorkflowStage)
	assert.Equal(t, domain.TicketStatusInProgress, reopened.Status)
	assert.False(t, reopened.AddressCreated)
	assert.False(t, reopened.AddressVerified)
}

func TestTransitionEvents(t *testing.T) {
	fx := newEngineFixture(t)
	fx.staff.add(domain.DepartmentGIS, domain.StaffRoleGISStaff, "gis-1")

	_, err := fx.engine.CreateTicket(context.Background(), "frontdesk-1", validIntake())
	require.NoError(t, err)

	var types []events.EventType
	for _, event := range fx.events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventTicketCreated,
		events.EventStageChanged,
		events.EventTicketAssigned,
	}, types)
}
