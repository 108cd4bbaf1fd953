package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/token-auth/internal/events"
)

// AuditService writes authentication events to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service. Audit lines go to a named child logger.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
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
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventUserRegistered, a.handleUserRegistered)
	a.dispatcher.Subscribe(events.EventTokenRejected, a.handleAuthFailure)
	a.dispatcher.Subscribe(events.EventAccessDenied, a.handleAuthFailure)
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if p, ok := event.Payload.(events.LoginSucceededPayload); ok {
		fields = append(fields,
			zap.String("token_id", p.TokenID),
			zap.Strings("roles", p.Roles),
			zap.Time("expires_at", p.ExpiresAt))
	}
	a.logger.Info("LoginSucceeded", fields...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if p, ok := event.Payload.(events.LoginFailedPayload); ok {
		fields = append(fields, zap.String("email", p.Email), zap.String("reason", p.Reason))
	}
	a.logger.Info("LoginFailed", fields...)
	return nil
}

func (a *AuditService) handleUserRegistered(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if p, ok := event.Payload.(events.UserRegisteredPayload); ok {
		fields = append(fields, zap.String("email", p.Email), zap.Strings("roles", p.Roles))
	}
	a.logger.Info("UserRegistered", fields...)
	return nil
}

func (a *AuditService) handleAuthFailure(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if p, ok := event.Payload.(events.AuthFailurePayload); ok {
		fields = append(fields,
			zap.String("reason", p.Reason),
			zap.String("path", p.Path),
			zap.String("ip", p.IP))
	}
	a.logger.Info(string(event.Type), fields...)
	return nil
}

func (a *AuditService) baseFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.Time("at", event.Timestamp),
	}
}
