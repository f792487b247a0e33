package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-tickets/internal/events"
)

// NotificationService turns lifecycle events into notifications. Delivery
// channels live outside this service, so notifications are logged for the
// log shipper to route.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.notify("moderators", "new ticket"))
	n.dispatcher.Subscribe(events.EventResolutionRequested, n.notify("moderators", "resolution awaiting approval"))
	n.dispatcher.Subscribe(events.EventResolutionApproved, n.notify("author", "ticket solved, rating requested"))
	n.dispatcher.Subscribe(events.EventResolutionRejected, n.notify("developer", "resolution rejected"))
	n.dispatcher.Subscribe(events.EventTicketRated, n.notify("developer", "ticket rated"))
	n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.notify("participants", "new comment"))
}

func (n *NotificationService) notify(audience, summary string) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		n.logger.Info("notification",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.String("actor_id", event.Actor.UserID),
			zap.String("audience", audience),
			zap.String("summary", summary),
			zap.Any("payload", event.Payload))
		return nil
	}
}
