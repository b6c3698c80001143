package service

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/auth-service/internal/events"
)

// AuditService writes every account event to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventUserRegistered,
		events.EventLoginSucceeded,
		events.EventLoginFailed,
		events.EventLoggedOut,
		events.EventPasswordChanged,
		events.EventProfileUpdated,
		events.EventRolesChanged,
		events.EventStatusChanged,
		events.EventUserDeleted,
	} {
		a.dispatcher.Subscribe(eventType, a.handle)
	}
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	level := zapcore.InfoLevel
	switch event.Type {
	case events.EventLoginFailed, events.EventStatusChanged, events.EventUserDeleted:
		level = zapcore.WarnLevel
	}

	if ce := a.logger.Check(level, string(event.Type)); ce != nil {
		ce.Write(
			zap.String("event_id", event.ID),
			zap.String("user_id", event.UserID),
			zap.String("actor_id", event.ActorID),
			zap.Time("at", event.Timestamp),
			zap.Any("payload", event.Payload),
		)
	}
	return nil
}
