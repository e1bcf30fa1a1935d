package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/parley/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepo is the repository for the local profile mirror
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo creates a new ProfileRepo
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Upsert creates or refreshes a mirrored profile
func (r *ProfileRepo) Upsert(ctx context.Context, profile *entity.Profile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_url", "is_verified", "is_company", "updated_at"}),
	}).Create(profile).Error
}

// GetById gets profile by Id, nil if absent
func (r *ProfileRepo) GetById(ctx context.Context, id int64) (*entity.Profile, error) {
	var profile entity.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByIds gets profiles by Ids
func (r *ProfileRepo) GetByIds(ctx context.Context, ids []int64) ([]*entity.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []*entity.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
