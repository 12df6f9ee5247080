package repository

import (
	"context"

	"mapro-backend/internal/domain"
)

// AuditRepository is the append-only activity log store. Records are
// immutable once written; reads are paginated with offset/limit and
// ordered newest first.
type AuditRepository interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, record *domain.AuditRecord) error
	ListByUsername(ctx context.Context, username string, offset, limit int) ([]domain.AuditRecord, error)
	ListByUserID(ctx context.Context, userID int64, offset, limit int) ([]domain.AuditRecord, error)
	ListAll(ctx context.Context) ([]domain.AuditRecord, error)
}
