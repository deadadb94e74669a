package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"astro-starter/internal/domain"
	"astro-starter/internal/email"
)

// MailService renderiza las plantillas de cuenta y las entrega con el Sender configurado.
type MailService struct {
	logger   *zap.Logger
	sender   email.Sender
	renderer *email.Renderer
	appName  string
	baseURL  string
}

func NewMailService(logger *zap.Logger, sender email.Sender, renderer *email.Renderer, appName, baseURL string) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailService{
		logger:   logger,
		sender:   sender,
		renderer: renderer,
		appName:  appName,
		baseURL:  baseURL,
	}
}

func (m *MailService) SendActivationEmail(ctx context.Context, user domain.User) error {
	m.logger.Debug("sending activation email", zap.String("email", user.Email))
	return m.sendFromTemplate(ctx, user, email.ActivationTemplate, m.appName+" account activation is required")
}

func (m *MailService) SendCreationEmail(ctx context.Context, user domain.User) error {
	m.logger.Debug("sending creation email", zap.String("email", user.Email))
	return m.sendFromTemplate(ctx, user, email.CreationTemplate, m.appName+" account activation is required")
}

func (m *MailService) SendPasswordResetMail(ctx context.Context, user domain.User) error {
	m.logger.Debug("sending password reset email", zap.String("email", user.Email))
	return m.sendFromTemplate(ctx, user, email.PasswordResetTemplate, m.appName+" password reset")
}

func (m *MailService) sendFromTemplate(ctx context.Context, user domain.User, templateName, subject string) error {
	if m.sender == nil || m.renderer == nil {
		return errors.New("mail service not configured")
	}
	if user.Email == "" {
		return fmt.Errorf("user %s has no email", user.Login)
	}
	body, err := m.renderer.Render(templateName, email.TemplateData{
		BaseURL:       m.baseURL,
		Login:         user.Login,
		FirstName:     user.FirstName,
		Email:         user.Email,
		LangKey:       user.LangKey,
		ActivationKey: user.ActivationKey,
		ResetKey:      user.ResetKey,
	})
	if err != nil {
		return err
	}
	if err := m.sender.Send(ctx, user.Email, subject, body); err != nil {
		m.logger.Warn("email could not be sent", zap.String("email", user.Email), zap.Error(err))
		return err
	}
	m.logger.Debug("sent email", zap.String("email", user.Email), zap.String("template", templateName))
	return nil
}
