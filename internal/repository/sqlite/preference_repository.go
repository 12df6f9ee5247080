package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mapro-backend/internal/domain"
	"mapro-backend/internal/repository"
)

const (
	createPreferenceCategoriesTable = `
CREATE TABLE IF NOT EXISTS preference_categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
`
	createPreferenceOptionsTable = `
CREATE TABLE IF NOT EXISTS preference_options (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL REFERENCES preference_categories(id),
	name TEXT NOT NULL
);
`
	// No unique index on (user_id, option_id): the reconciliation engine
	// guarantees at most one row per pair via find-or-create inside its
	// per-user lock.
	createUserPreferencesTable = `
CREATE TABLE IF NOT EXISTS user_preferences (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	option_id INTEGER NOT NULL,
	is_selected INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`
)

type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) repository.PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) Init(ctx context.Context) error {
	for _, stmt := range []string{
		createPreferenceCategoriesTable,
		createPreferenceOptionsTable,
		createUserPreferencesTable,
	} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create preference tables: %w", err)
		}
	}
	return nil
}

func (r *PreferenceRepository) Seed(ctx context.Context, categories []domain.PreferenceCategory) error {
	for _, cat := range categories {
		var catID int64
		err := r.db.QueryRowContext(ctx, `SELECT id FROM preference_categories WHERE name = ?`, cat.Name).Scan(&catID)
		if errors.Is(err, sql.ErrNoRows) {
			res, err := r.db.ExecContext(ctx, `INSERT INTO preference_categories (name) VALUES (?)`, cat.Name)
			if err != nil {
				return fmt.Errorf("seed category %q: %w", cat.Name, err)
			}
			catID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("seed category id: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("lookup category %q: %w", cat.Name, err)
		} else {
			// category present, assume its options are too
			continue
		}

		for _, opt := range cat.Options {
			if _, err := r.db.ExecContext(ctx, `
INSERT INTO preference_options (category_id, name) VALUES (?, ?)`, catID, opt.Name); err != nil {
				return fmt.Errorf("seed option %q: %w", opt.Name, err)
			}
		}
	}
	return nil
}

func (r *PreferenceRepository) ListCategories(ctx context.Context) ([]domain.PreferenceCategory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM preference_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.PreferenceCategory
	for rows.Next() {
		var cat domain.PreferenceCategory
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	for i := range categories {
		options, err := r.listOptionsByCategory(ctx, categories[i].ID)
		if err != nil {
			return nil, err
		}
		categories[i].Options = options
	}
	return categories, nil
}

func (r *PreferenceRepository) listOptionsByCategory(ctx context.Context, categoryID int64) ([]domain.PreferenceOption, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, category_id, name FROM preference_options WHERE category_id = ? ORDER BY id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	var options []domain.PreferenceOption
	for rows.Next() {
		var opt domain.PreferenceOption
		if err := rows.Scan(&opt.ID, &opt.CategoryID, &opt.Name); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

func (r *PreferenceRepository) GetOption(ctx context.Context, id int64) (*domain.PreferenceOption, error) {
	var opt domain.PreferenceOption
	err := r.db.QueryRowContext(ctx, `
SELECT id, category_id, name FROM preference_options WHERE id = ?`, id).
		Scan(&opt.ID, &opt.CategoryID, &opt.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("option %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get option: %w", err)
	}
	return &opt, nil
}

func (r *PreferenceRepository) ListByUser(ctx context.Context, userID int64) ([]domain.UserPreference, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, option_id, is_selected, created_at, updated_at
FROM user_preferences
WHERE user_id = ?
ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user preferences: %w", err)
	}
	defer rows.Close()

	var prefs []domain.UserPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, *pref)
	}
	return prefs, rows.Err()
}

func (r *PreferenceRepository) FindByUserAndOption(ctx context.Context, userID, optionID int64) (*domain.UserPreference, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, option_id, is_selected, created_at, updated_at
FROM user_preferences
WHERE user_id = ? AND option_id = ?`, userID, optionID)

	pref, err := scanPreference(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user preference: %w", repository.ErrNotFound)
		}
		return nil, err
	}
	return pref, nil
}

func (r *PreferenceRepository) CreatePreference(ctx context.Context, pref *domain.UserPreference) (int64, error) {
	now := time.Now().UTC()
	pref.CreatedAt = now
	pref.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO user_preferences (user_id, option_id, is_selected, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		pref.UserID, pref.OptionID, pref.IsSelected, pref.CreatedAt, pref.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user preference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user preference last insert id: %w", err)
	}
	pref.ID = id
	return id, nil
}

func (r *PreferenceRepository) UpdateSelection(ctx context.Context, id int64, selected bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE user_preferences SET is_selected = ?, updated_at = ? WHERE id = ?`,
		selected, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update selection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update selection rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user preference %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func scanPreference(row interface {
	Scan(dest ...any) error
}) (*domain.UserPreference, error) {
	var pref domain.UserPreference
	if err := row.Scan(
		&pref.ID,
		&pref.UserID,
		&pref.OptionID,
		&pref.IsSelected,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan user preference: %w", err)
	}
	return &pref, nil
}
