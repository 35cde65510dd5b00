package service

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
)

// NotificationService handles emitting notifications for auth events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventCredentialRegistered, n.handleCredentialRegistered)
	n.dispatcher.Subscribe(events.EventCredentialUpdated, n.handleCredentialUpdated)
	n.dispatcher.Subscribe(events.EventSessionStarted, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventSessionRotated, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventSessionEnded, n.handleSessionEvent)
}

func (n *NotificationService) handleCredentialRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CredentialRegisteredPayload)
	if !ok {
		n.logger.Warn("CredentialRegistered with unexpected payload", zap.String("event_id", event.ID))
		return nil
	}
	n.logger.Info("CredentialRegistered", zap.String("subject", event.Subject), zap.String("username", payload.Username))
	n.sendVerificationEmailStub(ctx, event.Subject, payload)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleCredentialUpdated(ctx context.Context, event events.Event) error {
	n.logger.Info("CredentialUpdated", zap.String("subject", event.Subject), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSessionEvent(ctx context.Context, event events.Event) error {
	n.logger.Debug(string(event.Type), zap.String("subject", event.Subject))
	return nil
}

// VerificationLink builds the link mailed after signup.
func (n *NotificationService) VerificationLink(token string) string {
	base := strings.TrimSpace(n.cfg.VerifyEmailURL)
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func (n *NotificationService) sendVerificationEmailStub(_ context.Context, subject string, payload events.CredentialRegisteredPayload) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	link := n.VerificationLink(payload.VerificationToken)
	if link == "" {
		return
	}
	n.logger.Debug("sendVerificationEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", payload.Email),
		zap.String("subject", subject),
		zap.Time("expires_at", payload.ExpiresAt),
		zap.Int("link_length", len(link)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject", event.Subject),
		zap.String("event_type", string(event.Type)))
}
