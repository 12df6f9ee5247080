package domain

import "time"

// PreferenceCategory groups the options a user can pick from. Categories
// and options are reference data seeded at startup; the API never mutates
// them.
type PreferenceCategory struct {
	ID      int64
	Name    string
	Options []PreferenceOption
}

// PreferenceOption belongs to exactly one category.
type PreferenceOption struct {
	ID         int64
	CategoryID int64
	Name       string
}

// UserPreference records a user's relationship to a single option. Rows
// are created the first time an option is ever selected and are never
// deleted afterwards, only toggled via IsSelected.
type UserPreference struct {
	ID         int64
	UserID     int64
	OptionID   int64
	IsSelected bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
