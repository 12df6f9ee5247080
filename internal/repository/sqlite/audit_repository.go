package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"mapro-backend/internal/domain"
	"mapro-backend/internal/repository"
)

const createAuditLogsTable = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	username TEXT NOT NULL,
	action_type TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
`

var auditLogIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_username ON audit_logs(username, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id, created_at);`,
}

// AuditRepository is the sqlite implementation of the append-only
// activity log. It only ever inserts and selects; there is no update or
// delete path.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) repository.AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAuditLogsTable); err != nil {
		return fmt.Errorf("create audit_logs table: %w", err)
	}
	for _, stmt := range auditLogIndexes {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create audit_logs index: %w", err)
		}
	}
	return nil
}

func (r *AuditRepository) Append(ctx context.Context, record *domain.AuditRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (id, user_id, username, action_type, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.Username,
		record.ActionType,
		record.Detail,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByUsername(ctx context.Context, username string, offset, limit int) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, username, action_type, detail, created_at
FROM audit_logs
WHERE username = ?
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?`,
		username, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit records by username: %w", err)
	}
	return collectRecords(rows)
}

func (r *AuditRepository) ListByUserID(ctx context.Context, userID int64, offset, limit int) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, username, action_type, detail, created_at
FROM audit_logs
WHERE user_id = ?
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit records by user id: %w", err)
	}
	return collectRecords(rows)
}

func (r *AuditRepository) ListAll(ctx context.Context) ([]domain.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, username, action_type, detail, created_at
FROM audit_logs
ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all audit records: %w", err)
	}
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]domain.AuditRecord, error) {
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Username,
			&rec.ActionType,
			&rec.Detail,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
