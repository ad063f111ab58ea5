// Package services orchestrates domain operations across SQLite, AMQP,
// and the external report sink.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"opsboard/internal/amqp"
	"opsboard/internal/core"
	"opsboard/internal/storage"
)

// BoardService orchestrates kanban record operations across SQLite and AMQP.
type BoardService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewBoardService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *BoardService {
	return &BoardService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateRecord validates and saves a new record. An empty status lands the
// record in the board's first column.
func (s *BoardService) CreateRecord(ctx context.Context, rec core.Record, actor string) (int64, error) {
	board, err := core.BoardFor(rec.Board)
	if err != nil {
		return 0, err
	}
	if rec.Status == "" {
		rec.Status = board.First()
	}
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	id, err := s.storage.CreateRecord(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("save record: %w", err)
	}

	s.publish(ctx, amqp.NewNotificationMessage(rec.TenantID, actor, "record:created", rec.Title, string(rec.Status)))
	return id, nil
}

// Board returns the column view of one board, optionally filtered to a month.
func (s *BoardService) Board(ctx context.Context, tenantID int64, kind core.BoardKind, monthFilter string) (core.BoardView, error) {
	board, err := core.BoardFor(kind)
	if err != nil {
		return core.BoardView{}, err
	}
	records, err := s.storage.ListRecords(ctx, tenantID, kind)
	if err != nil {
		return core.BoardView{}, fmt.Errorf("list records: %w", err)
	}
	return core.Columns(board, records, monthFilter), nil
}

// Transition moves a tenant's record to a target column, persists the
// result, and publishes a notification. The record is returned as stored;
// changed reports whether the status actually moved, so callers can skip
// follow-up work on a same-column no-op.
func (s *BoardService) Transition(ctx context.Context, tenantID, id int64, target core.Status, actor string, now time.Time) (rec core.Record, changed bool, err error) {
	rec, err = s.storage.GetRecord(ctx, tenantID, id)
	if err != nil {
		return core.Record{}, false, fmt.Errorf("load record: %w", err)
	}
	board, err := core.BoardFor(rec.Board)
	if err != nil {
		return core.Record{}, false, err
	}

	from := rec.Status
	moved, err := core.ApplyTransition(board, rec, target, now)
	if err != nil {
		return core.Record{}, false, err
	}
	if moved.Status == from {
		return moved, false, nil
	}

	if err := s.storage.UpdateRecord(ctx, moved); err != nil {
		return core.Record{}, false, fmt.Errorf("update record: %w", err)
	}

	detail := fmt.Sprintf("%s to %s", from, moved.Status)
	s.publish(ctx, amqp.NewNotificationMessage(moved.TenantID, actor, "record:transitioned", moved.Title, detail))
	return moved, true, nil
}

// Delete soft deletes a tenant's record.
func (s *BoardService) Delete(ctx context.Context, tenantID, id int64) error {
	if err := s.storage.SoftDeleteRecord(ctx, tenantID, id); err != nil {
		return fmt.Errorf("soft delete record: %w", err)
	}
	return nil
}

// Progress reports completion against the monthly goal for one board.
func (s *BoardService) Progress(ctx context.Context, tenantID int64, kind core.BoardKind, month string, goal int) (core.Progress, error) {
	board, err := core.BoardFor(kind)
	if err != nil {
		return core.Progress{}, err
	}
	records, err := s.storage.ListRecords(ctx, tenantID, kind)
	if err != nil {
		return core.Progress{}, fmt.Errorf("list records: %w", err)
	}
	return core.MonthProgress(board, records, month, goal), nil
}

// StaleLeads returns leads untouched since the cutoff that are still open.
func (s *BoardService) StaleLeads(ctx context.Context, cutoff time.Time) ([]core.Record, error) {
	leads, err := s.storage.ListStaleLeads(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale leads: %w", err)
	}
	return leads, nil
}

func (s *BoardService) publish(ctx context.Context, msg *amqp.NotificationMessage) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping notification")
		return
	}
	if err := s.amqpClient.PublishNotification(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish notification",
			"action", msg.Action, "subject", msg.Subject, "error", err)
	}
}
