package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"direct-chat/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileDirectory resolves display info for users.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	// BulkProfiles returns the profiles that exist among ids; missing ids are absent from the map.
	BulkProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error)
}

// ProfileRepo reads the profiles table shared with the profile service.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	query, args := From("profiles").Eq("id", userID).Select("id", "username", "avatar")
	err := r.db.GetContext(ctx, &p, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

func (r *ProfileRepo) BulkProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args := From("profiles").In("id", ids).Select("id", "username", "avatar")
	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, err
	}
	for _, p := range profiles {
		result[p.ID] = p
	}
	return result, nil
}
