package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/config"
	"github.com/cityworks/addressing-service/internal/events"
)

// NotificationService reacts to domain events by notifying customers and
// staff. Delivery is a stub that logs the outgoing message; wiring a real
// mail or webhook transport replaces deliver only.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService constructs the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{logger: logger, cfg: cfg}
}

// RegisterHandlers subscribes the service to the events it cares about.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketAssigned, s.onTicketAssigned)
	dispatcher.Subscribe(events.EventSignatureRequested, s.onSignatureRequested)
	dispatcher.Subscribe(events.EventSignatureCompleted, s.onSignatureCompleted)
	dispatcher.Subscribe(events.EventTicketClosed, s.onTicketClosed)
}

func (s *NotificationService) onTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok || payload.AssigneeID == nil {
		return nil
	}
	s.deliver("ticket assigned",
		zap.String("ticket_id", event.TicketID),
		zap.Stringp("assignee_id", payload.AssigneeID),
		zap.String("stage", string(payload.Stage)),
	)
	return nil
}

func (s *NotificationService) onSignatureRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SignatureRequestedPayload)
	if !ok {
		return nil
	}
	s.deliver("signature request email",
		zap.String("ticket_id", event.TicketID),
		zap.String("to", payload.Email),
		zap.String("from", s.cfg.EmailFrom),
		zap.String("signature_url", payload.SignatureURL),
	)
	return nil
}

func (s *NotificationService) onSignatureCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SignatureCompletedPayload)
	if !ok {
		return nil
	}
	s.deliver("signature completed",
		zap.String("ticket_id", event.TicketID),
		zap.String("ticket_number", payload.TicketNumber),
		zap.String("letter_path", payload.AddressLetterPath),
	)
	return nil
}

func (s *NotificationService) onTicketClosed(ctx context.Context, event events.Event) error {
	s.deliver("ticket closed", zap.String("ticket_id", event.TicketID))
	return nil
}

func (s *NotificationService) deliver(kind string, fields ...zap.Field) {
	s.logger.Info("notification: "+kind, fields...)
}
