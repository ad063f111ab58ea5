package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"opsboard/internal/amqp"
	"opsboard/internal/core"
	"opsboard/internal/storage"
)

// FormService stores client questionnaire schemas and validated submissions.
type FormService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewFormService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *FormService {
	return &FormService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateForm checks the schema at authoring time and stores it. Schemas
// with broken conditional rules are rejected before they reach a client.
func (s *FormService) CreateForm(ctx context.Context, form core.Form) (int64, error) {
	if err := core.ValidateSchema(form); err != nil {
		return 0, err
	}
	id, err := s.storage.CreateForm(ctx, form)
	if err != nil {
		return 0, fmt.Errorf("save form: %w", err)
	}
	return id, nil
}

func (s *FormService) GetForm(ctx context.Context, tenantID, id int64) (core.Form, error) {
	form, err := s.storage.GetForm(ctx, tenantID, id)
	if err != nil {
		return core.Form{}, fmt.Errorf("load form: %w", err)
	}
	return form, nil
}

// Submit validates a response set against a tenant's form and stores it.
// Required visible fields left empty surface as a *core.ValidationError.
func (s *FormService) Submit(ctx context.Context, tenantID, formID int64, actor string, resp core.Responses) (int64, error) {
	form, err := s.storage.GetForm(ctx, tenantID, formID)
	if err != nil {
		return 0, fmt.Errorf("load form: %w", err)
	}
	if err := core.Validate(form, resp); err != nil {
		return 0, err
	}
	id, err := s.storage.SaveSubmission(ctx, formID, actor, resp)
	if err != nil {
		return 0, fmt.Errorf("save submission: %w", err)
	}

	s.publish(ctx, amqp.NewNotificationMessage(form.TenantID, actor, "form:submitted", form.Title, "submission "+strconv.FormatInt(id, 10)))
	return id, nil
}

func (s *FormService) publish(ctx context.Context, msg *amqp.NotificationMessage) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping notification")
		return
	}
	if err := s.amqpClient.PublishNotification(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification",
			"action", msg.Action, "subject", msg.Subject, "error", err)
	}
}
