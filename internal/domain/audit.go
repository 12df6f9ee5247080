package domain

import "time"

// Audit action types recorded by the activity logger.
const (
	ActionSignUp = "SIGNUP"
	ActionLogin  = "LOGIN"
	ActionUpdate = "UPDATE"
)

// AuditRecord is one immutable entry in the activity log. Username is a
// denormalized copy captured at write time; it is deliberately not kept
// in sync with later renames so historical entries stay stable.
type AuditRecord struct {
	ID         string
	UserID     int64
	Username   string
	ActionType string
	Detail     string
	CreatedAt  time.Time
}
