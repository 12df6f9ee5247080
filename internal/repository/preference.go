package repository

import (
	"context"

	"mapro-backend/internal/domain"
)

// PreferenceRepository defines persistence operations for preference
// reference data and per-user selection rows.
type PreferenceRepository interface {
	Init(ctx context.Context) error
	// Seed inserts categories and their options unless a category with the
	// same name already exists.
	Seed(ctx context.Context, categories []domain.PreferenceCategory) error
	ListCategories(ctx context.Context) ([]domain.PreferenceCategory, error)
	GetOption(ctx context.Context, id int64) (*domain.PreferenceOption, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.UserPreference, error)
	FindByUserAndOption(ctx context.Context, userID, optionID int64) (*domain.UserPreference, error)
	CreatePreference(ctx context.Context, pref *domain.UserPreference) (int64, error)
	UpdateSelection(ctx context.Context, id int64, selected bool) error
}
