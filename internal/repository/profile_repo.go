package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

// ProfileRepository persists user directory profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.UserProfile) error
	GetByUID(ctx context.Context, uid string) (models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (models.UserProfile, error)
	Update(ctx context.Context, profile *models.UserProfile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository instantiates the repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) GetByUID(ctx context.Context, uid string) (models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).Take(&profile).Error; err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (models.UserProfile, error) {
	var profile models.UserProfile
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Where("email = ?", normalized).Take(&profile).Error; err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}
