package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/parley/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadRepo is the repository for thread operations
type ThreadRepo struct {
	db *gorm.DB
}

// NewThreadRepo creates a new ThreadRepo
func NewThreadRepo(db *gorm.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// Create creates a new thread
func (r *ThreadRepo) Create(ctx context.Context, tx *gorm.DB, thread *entity.Thread) error {
	return tx.WithContext(ctx).Create(thread).Error
}

// InsertDirectIfAbsent inserts a direct thread unless one already exists for
// its pair key. created is false when another row holds the key.
func (r *ThreadRepo) InsertDirectIfAbsent(ctx context.Context, tx *gorm.DB, thread *entity.Thread) (bool, error) {
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(thread)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetByPairKey gets a direct thread by its pair key, nil if absent
func (r *ThreadRepo) GetByPairKey(ctx context.Context, tx *gorm.DB, pairKey string) (*entity.Thread, error) {
	var thread entity.Thread
	err := tx.WithContext(ctx).Where("pair_key = ?", pairKey).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

// GetById gets thread by Id, nil if absent
func (r *ThreadRepo) GetById(ctx context.Context, id int64) (*entity.Thread, error) {
	var thread entity.Thread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &thread, nil
}

// SetActive reactivates or deactivates a thread
func (r *ThreadRepo) SetActive(ctx context.Context, tx *gorm.DB, id int64, active bool) error {
	return tx.WithContext(ctx).
		Model(&entity.Thread{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": entity.NowUnixMilli(),
		}).Error
}

// AllocSeq bumps max_seq with a single atomic update and returns the thread
// as seen after the bump. The update holds the row lock until the enclosing
// transaction ends, which serializes appends to one thread.
func (r *ThreadRepo) AllocSeq(ctx context.Context, tx *gorm.DB, id int64) (*entity.Thread, error) {
	res := tx.WithContext(ctx).
		Model(&entity.Thread{}).
		Where("id = ?", id).
		UpdateColumn("max_seq", gorm.Expr("max_seq + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var thread entity.Thread
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

// TouchLastMessage updates the denormalized last message columns and
// reactivates the thread
func (r *ThreadRepo) TouchLastMessage(ctx context.Context, tx *gorm.DB, msg *entity.Message, preview string) error {
	return tx.WithContext(ctx).
		Model(&entity.Thread{}).
		Where("id = ?", msg.ThreadId).
		Updates(map[string]interface{}{
			"last_message_at":      msg.CreatedAt,
			"last_message_preview": preview,
			"last_sender_id":       msg.SenderId,
			"is_active":            true,
			"updated_at":           entity.NowUnixMilli(),
		}).Error
}

func (r *ThreadRepo) withState(ctx context.Context, profileId int64) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("threads t").
		Select("t.*, p.unread_count AS unread_count, p.last_read_at AS last_read_at").
		Joins("JOIN thread_participants p ON p.thread_id = t.id AND p.profile_id = ?", profileId)
}

// ListByParticipant lists threads of a kind the profile participates in,
// most recently active first
func (r *ThreadRepo) ListByParticipant(ctx context.Context, profileId int64, kind string) ([]*entity.ThreadWithState, error) {
	var results []*entity.ThreadWithState
	err := r.withState(ctx, profileId).
		Where("t.kind = ?", kind).
		Order("t.last_message_at DESC").
		Order("t.id DESC").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetWithState gets a thread with the viewer's participant state, nil when
// the thread does not exist or the profile is not a participant
func (r *ThreadRepo) GetWithState(ctx context.Context, id, profileId int64) (*entity.ThreadWithState, error) {
	var results []*entity.ThreadWithState
	err := r.withState(ctx, profileId).
		Where("t.id = ?", id).
		Limit(1).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
