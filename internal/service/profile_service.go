package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/directory"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/pkg/errcode"
)

// ProfileService exposes profile display data
type ProfileService struct {
	dir directory.Directory
}

// NewProfileService creates a new ProfileService
func NewProfileService(dir directory.Directory) *ProfileService {
	return &ProfileService{dir: dir}
}

// GetProfileInfo gets profile display data by Id
func (s *ProfileService) GetProfileInfo(ctx context.Context, profileId int64) (*entity.ProfileInfo, error) {
	if profileId <= 0 {
		return nil, errcode.ErrInvalidParam
	}
	p, err := s.dir.GetProfile(ctx, profileId)
	if err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			return nil, errcode.ErrTargetNotFound
		}
		log.CtxError(ctx, "get profile failed: profile_id=%d, error=%v", profileId, err)
		return nil, errcode.ErrUnavailable
	}
	return p.ToProfileInfo(), nil
}

// resolveDisplay looks up display data for list rendering. A failing
// directory only degrades the view.
func resolveDisplay(ctx context.Context, dir directory.Directory, ids []int64) map[int64]*entity.ProfileInfo {
	out := make(map[int64]*entity.ProfileInfo, len(ids))
	if len(ids) == 0 {
		return out
	}
	profiles, err := dir.GetProfiles(ctx, ids)
	if err != nil {
		log.CtxWarn(ctx, "resolve profiles failed: count=%d, error=%v", len(ids), err)
		return out
	}
	for id, p := range profiles {
		out[id] = p.ToProfileInfo()
	}
	return out
}
