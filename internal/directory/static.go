package directory

import (
	"context"
	"sync"

	"github.com/mbeoliero/parley/internal/entity"
)

// StaticDirectory serves profiles from memory
type StaticDirectory struct {
	mu       sync.RWMutex
	profiles map[int64]*entity.Profile
}

// NewStaticDirectory creates a StaticDirectory holding the given profiles
func NewStaticDirectory(profiles ...*entity.Profile) *StaticDirectory {
	d := &StaticDirectory{profiles: make(map[int64]*entity.Profile, len(profiles))}
	for _, p := range profiles {
		d.profiles[p.Id] = p
	}
	return d
}

// Put adds or replaces a profile
func (d *StaticDirectory) Put(p *entity.Profile) {
	d.mu.Lock()
	d.profiles[p.Id] = p
	d.mu.Unlock()
}

func (d *StaticDirectory) GetProfile(ctx context.Context, id int64) (*entity.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *StaticDirectory) GetProfiles(ctx context.Context, ids []int64) (map[int64]*entity.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[int64]*entity.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}
