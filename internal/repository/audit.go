// Package repository persists dispatch runs and mirrors the audit log.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/models"
)

// BatchSender is the part of *pgxpool.Pool used by AuditRepository.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// AuditRepository mirrors audit rows into the audit_log table.
type AuditRepository struct {
	db  BatchSender
	log *logger.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db BatchSender, log *logger.Logger) *AuditRepository {
	return &AuditRepository{db: db, log: log}
}

// Append inserts rows in order inside a single batch round-trip.
func (r *AuditRepository) Append(ctx context.Context, rows []models.AuditRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO audit_log (logged_at, actor, action, recipient, message)
			VALUES ($1, $2, $3, $4, $5)
		`, row.Timestamp.UTC(), row.Actor, row.Action, row.Recipient, row.Message)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert audit row %d: %w", i, err)
		}
	}

	r.log.Debug().Int("rows", len(rows)).Msg("audit rows mirrored")
	return nil
}
