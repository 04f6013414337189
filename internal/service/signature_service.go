package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/config"
	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/events"
	"github.com/cityworks/addressing-service/internal/letters"
	"github.com/cityworks/addressing-service/internal/repository"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

const signatureTokenKeyPrefix = "signature:token:"

// SignatureService runs the customer signature sub-flow: once a ticket is
// Ready to Contact Customer, staff request a signature; the customer follows
// a tokenized link, reviews the approved address, and signs. Tokens are
// cached in Redis for fast public lookups, with Postgres as the source of
// truth.
type SignatureService struct {
	tickets    repository.TicketRepository
	redis      *redis.Client
	letters    *letters.Generator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.SignatureConfig
	clock      func() time.Time
}

// NewSignatureService constructs the service.
func NewSignatureService(
	tickets repository.TicketRepository,
	redisClient *redis.Client,
	letterGen *letters.Generator,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	cfg config.SignatureConfig,
) *SignatureService {
	return &SignatureService{
		tickets:    tickets,
		redis:      redisClient,
		letters:    letterGen,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		clock:      time.Now,
	}
}

// RequestSignature issues a signature token for a ticket and records the
// request in history. The ticket must be Ready to Contact Customer.
func (s *SignatureService) RequestSignature(ctx context.Context, ticketID, actorID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.WorkflowStage != domain.StageReadyToContact {
		return nil, apperrors.NewInvalidTransition(string(ticket.WorkflowStage), "signature request")
	}
	if ticket.SignatureCompleted {
		return nil, apperrors.NewConflict("signature already completed", map[string]any{"ticket_id": ticket.ID})
	}

	now := s.clock()
	token := uuid.NewString()
	expectedVersion := ticket.Version

	ticket.SignatureToken = &token
	ticket.SignatureRequested = true
	ticket.SignatureRequestedAt = &now
	ticket.SignatureRequestedBy = &actorID
	ticket.UpdatedAt = now

	entry := s.historyEntry(ticket, "Signature requested from customer", actorID, now)
	if err := s.tickets.Update(ctx, ticket, expectedVersion, []domain.HistoryEntry{entry}); err != nil {
		return nil, err
	}
	ticket.History = append(ticket.History, entry)

	s.cacheToken(ctx, token, ticket.ID)
	s.publish(ctx, events.Event{
		Type:     events.EventSignatureRequested,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.SignatureRequestedPayload{
			Email:        ticket.Email,
			TicketNumber: ticket.TicketNumber,
			SignatureURL: s.SignatureURL(token),
		},
	})
	return ticket, nil
}

// ResendSignature re-sends the signature link, rotating the token.
func (s *SignatureService) ResendSignature(ctx context.Context, ticketID, actorID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.SignatureRequested || ticket.SignatureToken == nil {
		return nil, apperrors.NewValidationError("no signature request to resend", nil)
	}
	if ticket.SignatureCompleted {
		return nil, apperrors.NewConflict("signature already completed", map[string]any{"ticket_id": ticket.ID})
	}

	now := s.clock()
	oldToken := *ticket.SignatureToken
	token := uuid.NewString()
	expectedVersion := ticket.Version

	ticket.SignatureToken = &token
	ticket.SignatureRequestedAt = &now
	ticket.SignatureRequestedBy = &actorID
	ticket.UpdatedAt = now

	entry := s.historyEntry(ticket, "Signature request re-sent to customer", actorID, now)
	if err := s.tickets.Update(ctx, ticket, expectedVersion, []domain.HistoryEntry{entry}); err != nil {
		return nil, err
	}
	ticket.History = append(ticket.History, entry)

	s.evictToken(ctx, oldToken)
	s.cacheToken(ctx, token, ticket.ID)
	s.publish(ctx, events.Event{
		Type:     events.EventSignatureRequested,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.SignatureRequestedPayload{
			Email:        ticket.Email,
			TicketNumber: ticket.TicketNumber,
			SignatureURL: s.SignatureURL(token),
		},
	})
	return ticket, nil
}

// LookupByToken resolves a signature token to its ticket for the public
// signing page. It consults the Redis cache first and falls back to the
// database.
func (s *SignatureService) LookupByToken(ctx context.Context, token string) (*domain.Ticket, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewValidationError("signature token is required", nil)
	}

	if s.redis != nil {
		if ticketID, err := s.redis.Get(ctx, signatureTokenKeyPrefix+token).Result(); err == nil {
			ticket, err := s.tickets.GetByID(ctx, ticketID)
			if err == nil && ticket.SignatureToken != nil && *ticket.SignatureToken == token {
				return ticket, nil
			}
		}
	}

	ticket, err := s.tickets.GetBySignatureToken(ctx, token)
	if err != nil {
		return nil, err
	}
	s.cacheToken(ctx, token, ticket.ID)
	return ticket, nil
}

// CompleteSignature records the customer's signature, stores the signature
// image, generates the address confirmation letter, and invalidates the
// token.
func (s *SignatureService) CompleteSignature(ctx context.Context, token, signatureData string) (*domain.Ticket, error) {
	ticket, err := s.LookupByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if ticket.SignatureCompleted {
		return nil, apperrors.NewConflict("signature already completed", map[string]any{"ticket_id": ticket.ID})
	}
	if strings.TrimSpace(signatureData) == "" {
		return nil, apperrors.NewValidationError("signature data is required", nil)
	}

	if _, err := s.saveSignatureImage(ticket.TicketNumber, signatureData); err != nil {
		return nil, err
	}

	now := s.clock()
	expectedVersion := ticket.Version

	letterPath, err := s.letters.Generate(ticket, now)
	if err != nil {
		return nil, err
	}

	ticket.SignatureCompleted = true
	ticket.SignatureCompletedAt = &now
	ticket.AddressLetterPath = &letterPath
	ticket.UpdatedAt = now

	entry := s.historyEntry(ticket, "Customer signature received; address letter generated", domain.SystemActorID, now)
	if err := s.tickets.Update(ctx, ticket, expectedVersion, []domain.HistoryEntry{entry}); err != nil {
		return nil, err
	}
	ticket.History = append(ticket.History, entry)

	s.evictToken(ctx, token)
	s.publish(ctx, events.Event{
		Type:     events.EventSignatureCompleted,
		TicketID: ticket.ID,
		ActorID:  domain.SystemActorID,
		Payload: events.SignatureCompletedPayload{
			TicketNumber:      ticket.TicketNumber,
			AddressLetterPath: letterPath,
		},
	})
	return ticket, nil
}

// SignatureURL builds the public signing link for a token.
func (s *SignatureService) SignatureURL(token string) string {
	return fmt.Sprintf("%s/signature/%s", strings.TrimRight(s.cfg.BaseURL, "/"), token)
}

func (s *SignatureService) saveSignatureImage(ticketNumber, signatureData string) (string, error) {
	// Signature pads submit data URLs; strip the prefix before decoding.
	if idx := strings.Index(signatureData, ","); idx >= 0 && strings.HasPrefix(signatureData, "data:") {
		signatureData = signatureData[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(signatureData)
	if err != nil {
		return "", apperrors.NewValidationError("signature data is not valid base64", nil)
	}

	if err := os.MkdirAll(s.cfg.SignaturesDir, 0o755); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	path := filepath.Join(s.cfg.SignaturesDir, fmt.Sprintf("signature-%s.png", ticketNumber))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return path, nil
}

func (s *SignatureService) cacheToken(ctx context.Context, token, ticketID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, signatureTokenKeyPrefix+token, ticketID, s.cfg.TokenTTL()).Err(); err != nil {
		s.logger.Warn("failed to cache signature token", zap.Error(err))
	}
}

func (s *SignatureService) evictToken(ctx context.Context, token string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, signatureTokenKeyPrefix+token).Err(); err != nil {
		s.logger.Warn("failed to evict signature token", zap.Error(err))
	}
}

func (s *SignatureService) historyEntry(ticket *domain.Ticket, notes, actor string, at time.Time) domain.HistoryEntry {
	status := ticket.Status
	entry := domain.HistoryEntry{
		TicketID:      ticket.ID,
		Seq:           len(ticket.History) + 1,
		WorkflowStage: ticket.WorkflowStage,
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

func (s *SignatureService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
