package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mapro-backend/internal/domain"
	"mapro-backend/internal/repository"
	"mapro-backend/internal/storage"
)

// ErrArchiveDisabled is returned when no archive bucket is configured.
var ErrArchiveDisabled = errors.New("audit archive is not configured")

const defaultLogPageSize = 10

// MaxLogPageSize caps a single audit page; larger requests are clamped.
const MaxLogPageSize = 100

// ActivityLogger writes user actions into the append-only audit store and
// reads them back in pages. Instances are passed explicitly to whoever
// needs them; there is no package-level logger state.
//
// Write failures are the caller's to absorb: the operation that triggered
// the log entry must never fail because the audit store was unavailable.
type ActivityLogger interface {
	Log(ctx context.Context, userID int64, username, actionType, detail string) error
	GetLogsByUsername(ctx context.Context, username string, page, size int) ([]domain.AuditRecord, error)
	GetLogsByUserID(ctx context.Context, userID int64, page, size int) ([]domain.AuditRecord, error)
	Archive(ctx context.Context) (string, error)
	ListArchives(ctx context.Context) ([]storage.ObjectInfo, error)
}

type activityLogger struct {
	records   repository.AuditRepository
	store     storage.Service
	bucket    string
	keyPrefix string
}

// NewActivityLogger builds a logger over the audit store. store may be
// nil; Archive then reports ErrArchiveDisabled.
func NewActivityLogger(records repository.AuditRepository, store storage.Service, bucket, keyPrefix string) ActivityLogger {
	return &activityLogger{
		records:   records,
		store:     store,
		bucket:    bucket,
		keyPrefix: keyPrefix,
	}
}

func (l *activityLogger) Log(ctx context.Context, userID int64, username, actionType, detail string) error {
	record := &domain.AuditRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Username:   username,
		ActionType: actionType,
		Detail:     detail,
		// server clock, never client-supplied
		CreatedAt: time.Now().UTC(),
	}
	return l.records.Append(ctx, record)
}

func (l *activityLogger) GetLogsByUsername(ctx context.Context, username string, page, size int) ([]domain.AuditRecord, error) {
	offset, limit := pageBounds(page, size)
	return l.records.ListByUsername(ctx, username, offset, limit)
}

func (l *activityLogger) GetLogsByUserID(ctx context.Context, userID int64, page, size int) ([]domain.AuditRecord, error) {
	offset, limit := pageBounds(page, size)
	return l.records.ListByUserID(ctx, userID, offset, limit)
}

type archivedRecord struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	ActionType string    `json:"actionType"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Archive exports the full trail as NDJSON to object storage under a
// timestamped key and returns the resulting location.
func (l *activityLogger) Archive(ctx context.Context) (string, error) {
	if l.store == nil || l.bucket == "" {
		return "", ErrArchiveDisabled
	}

	records, err := l.records.ListAll(ctx)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(archivedRecord{
			ID:         records[i].ID,
			UserID:     records[i].UserID,
			Username:   records[i].Username,
			ActionType: records[i].ActionType,
			Detail:     records[i].Detail,
			CreatedAt:  records[i].CreatedAt,
		}); err != nil {
			return "", fmt.Errorf("encode audit record: %w", err)
		}
	}

	key := fmt.Sprintf("%s/audit-%s.ndjson", l.keyPrefix, time.Now().UTC().Format("20060102T150405Z"))
	return l.store.PutObject(ctx, l.bucket, key, &buf)
}

// ListArchives returns the archive objects written so far under the
// configured key prefix.
func (l *activityLogger) ListArchives(ctx context.Context) ([]storage.ObjectInfo, error) {
	if l.store == nil || l.bucket == "" {
		return nil, ErrArchiveDisabled
	}
	return l.store.ListObjects(ctx, l.bucket, l.keyPrefix)
}

func pageBounds(page, size int) (offset, limit int) {
	if size <= 0 {
		size = defaultLogPageSize
	}
	if size > MaxLogPageSize {
		size = MaxLogPageSize
	}
	if page < 0 {
		page = 0
	}
	return page * size, size
}
