package directory

import (
	"context"

	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/repository"
)

// DBDirectory resolves profiles from the local profiles table
type DBDirectory struct {
	repo *repository.ProfileRepo
}

// NewDBDirectory creates a DBDirectory
func NewDBDirectory(repo *repository.ProfileRepo) *DBDirectory {
	return &DBDirectory{repo: repo}
}

func (d *DBDirectory) GetProfile(ctx context.Context, id int64) (*entity.Profile, error) {
	p, err := d.repo.GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

func (d *DBDirectory) GetProfiles(ctx context.Context, ids []int64) (map[int64]*entity.Profile, error) {
	profiles, err := d.repo.GetByIds(ctx, dedupIds(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*entity.Profile, len(profiles))
	for _, p := range profiles {
		out[p.Id] = p
	}
	return out, nil
}
