package worker

import (
	"github.com/spec-kit/helpdesk-tickets/internal/events"
	"github.com/spec-kit/helpdesk-tickets/internal/service"
)

// StartEventSubscribers wires every lifecycle event consumer to the dispatcher.
func StartEventSubscribers(dispatcher events.Dispatcher, notifications *service.NotificationService, sink *events.KafkaSink) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	sink.Register(dispatcher)
}
