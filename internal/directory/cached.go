package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// CachedDirectory keeps resolved profiles in Redis for ttl. Cache failures
// degrade to the inner directory.
type CachedDirectory struct {
	inner Directory
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedDirectory wraps inner with a Redis cache
func NewCachedDirectory(inner Directory, rdb *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(id int64) string {
	return fmt.Sprintf(constant.RedisKeyProfile(), id)
}

func (d *CachedDirectory) GetProfile(ctx context.Context, id int64) (*entity.Profile, error) {
	raw, err := d.rdb.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var p entity.Profile
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		log.CtxWarn(ctx, "corrupt profile cache entry: profile_id=%d", id)
	} else if !errors.Is(err, redis.Nil) {
		log.CtxWarn(ctx, "profile cache get failed: profile_id=%d, err=%v", id, err)
	}

	p, err := d.inner.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, []*entity.Profile{p})
	return p, nil
}

func (d *CachedDirectory) GetProfiles(ctx context.Context, ids []int64) (map[int64]*entity.Profile, error) {
	ids = dedupIds(ids)
	out := make(map[int64]*entity.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	missing := ids
	vals, err := d.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.CtxWarn(ctx, "profile cache mget failed: err=%v", err)
	} else {
		missing = missing[:0:0]
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var p entity.Profile
			if err := json.Unmarshal([]byte(s), &p); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = &p
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := d.inner.GetProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	toStore := make([]*entity.Profile, 0, len(fetched))
	for id, p := range fetched {
		out[id] = p
		toStore = append(toStore, p)
	}
	d.store(ctx, toStore)
	return out, nil
}

func (d *CachedDirectory) store(ctx context.Context, profiles []*entity.Profile) {
	if len(profiles) == 0 || d.ttl <= 0 {
		return
	}
	pipe := d.rdb.Pipeline()
	for _, p := range profiles {
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(p.Id), raw, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.CtxWarn(ctx, "profile cache set failed: err=%v", err)
	}
}

// Invalidate drops a cached profile
func (d *CachedDirectory) Invalidate(ctx context.Context, id int64) error {
	return d.rdb.Del(ctx, cacheKey(id)).Err()
}
