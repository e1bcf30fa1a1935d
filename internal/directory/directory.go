// Package directory resolves numeric profile ids to display data owned by
// the surrounding application.
package directory

import (
	"context"
	"errors"

	"github.com/mbeoliero/parley/internal/entity"
)

// ErrProfileNotFound is returned when a profile id does not resolve
var ErrProfileNotFound = errors.New("profile not found")

// Directory looks up profiles
type Directory interface {
	// GetProfile returns ErrProfileNotFound for unknown ids
	GetProfile(ctx context.Context, id int64) (*entity.Profile, error)
	// GetProfiles resolves what it can; unknown ids are absent from the map
	GetProfiles(ctx context.Context, ids []int64) (map[int64]*entity.Profile, error)
}

func dedupIds(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
