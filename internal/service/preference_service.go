package service

import (
	"context"
	"errors"
	"sync"

	"mapro-backend/internal/domain"
	"mapro-backend/internal/repository"
)

// ErrOptionNotFound is returned when a desired option id does not exist.
var ErrOptionNotFound = errors.New("preference option not found")

// PreferenceService replaces a user's selected options as one logical
// unit. Rows are never deleted: deselected options stay behind with
// IsSelected=false, keeping a history of everything the user ever picked.
type PreferenceService interface {
	ListCategories(ctx context.Context) ([]domain.PreferenceCategory, error)
	SavePreferences(ctx context.Context, userID int64, optionIDs []int64) error
	GetUserPreferences(ctx context.Context, userID int64) ([]domain.UserPreference, error)
}

type preferenceService struct {
	prefs repository.PreferenceRepository

	// one lock per user id; SavePreferences is a read-modify-write that
	// must not run twice concurrently for the same user
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewPreferenceService(prefs repository.PreferenceRepository) PreferenceService {
	return &preferenceService{
		prefs: prefs,
		locks: make(map[int64]*sync.Mutex),
	}
}

func (s *preferenceService) ListCategories(ctx context.Context) ([]domain.PreferenceCategory, error) {
	return s.prefs.ListCategories(ctx)
}

func (s *preferenceService) SavePreferences(ctx context.Context, userID int64, optionIDs []int64) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// resolve every option up front so a bad id leaves no partial writes
	for _, optionID := range optionIDs {
		if _, err := s.prefs.GetOption(ctx, optionID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOptionNotFound
			}
			return err
		}
	}

	existing, err := s.prefs.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range existing {
		if !existing[i].IsSelected {
			continue
		}
		if err := s.prefs.UpdateSelection(ctx, existing[i].ID, false); err != nil {
			return err
		}
	}

	for _, optionID := range optionIDs {
		pref, err := s.prefs.FindByUserAndOption(ctx, userID, optionID)
		switch {
		case err == nil:
			if err := s.prefs.UpdateSelection(ctx, pref.ID, true); err != nil {
				return err
			}
		case errors.Is(err, repository.ErrNotFound):
			created := &domain.UserPreference{
				UserID:     userID,
				OptionID:   optionID,
				IsSelected: true,
			}
			if _, err := s.prefs.CreatePreference(ctx, created); err != nil {
				return err
			}
		default:
			return err
		}
	}

	return nil
}

func (s *preferenceService) GetUserPreferences(ctx context.Context, userID int64) ([]domain.UserPreference, error) {
	return s.prefs.ListByUser(ctx, userID)
}

func (s *preferenceService) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}
