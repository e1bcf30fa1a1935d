package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/pkg/constant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParticipantRepo is the repository for thread participant operations
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo creates a new ParticipantRepo
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// CreateBatch creates participant rows, skipping ones that already exist
func (r *ParticipantRepo) CreateBatch(ctx context.Context, tx *gorm.DB, threadId int64, profileIds ...int64) error {
	now := entity.NowUnixMilli()
	rows := make([]*entity.ThreadParticipant, 0, len(profileIds))
	for _, id := range profileIds {
		rows = append(rows, &entity.ThreadParticipant{
			ThreadId:  threadId,
			ProfileId: id,
			JoinedAt:  now,
		})
	}

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}, {Name: "profile_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// GetWithTx gets a participant row inside a transaction, nil if absent
func (r *ParticipantRepo) GetWithTx(ctx context.Context, tx *gorm.DB, threadId, profileId int64) (*entity.ThreadParticipant, error) {
	var p entity.ThreadParticipant
	err := tx.WithContext(ctx).
		Where("thread_id = ? AND profile_id = ?", threadId, profileId).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Get gets a participant row, nil if absent
func (r *ParticipantRepo) Get(ctx context.Context, threadId, profileId int64) (*entity.ThreadParticipant, error) {
	return r.GetWithTx(ctx, r.db, threadId, profileId)
}

// ListByThread lists all participants of a thread
func (r *ParticipantRepo) ListByThread(ctx context.Context, threadId int64) ([]*entity.ThreadParticipant, error) {
	var rows []*entity.ThreadParticipant
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadId).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// IncrementUnread adds one to the unread counter of every participant but
// the excluded one. Runs as a single statement so concurrent senders never
// lose an update.
func (r *ParticipantRepo) IncrementUnread(ctx context.Context, tx *gorm.DB, threadId, excludingProfileId int64) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&entity.ThreadParticipant{}).
		Where("thread_id = ? AND profile_id <> ?", threadId, excludingProfileId).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1"))
	return res.RowsAffected, res.Error
}

// MarkRead resets the unread counter and stamps last_read_at. The read
// watermark never moves backwards.
func (r *ParticipantRepo) MarkRead(ctx context.Context, threadId, profileId, readAt int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.ThreadParticipant{}).
		Where("thread_id = ? AND profile_id = ?", threadId, profileId).
		UpdateColumns(map[string]interface{}{
			"unread_count": 0,
			"last_read_at": gorm.Expr("CASE WHEN last_read_at > ? THEN last_read_at ELSE ? END", readAt, readAt),
		})
	return res.RowsAffected, res.Error
}

type unreadByKind struct {
	Kind  string `gorm:"column:kind"`
	Total int64  `gorm:"column:total"`
}

// UnreadSummary sums unread counters of a profile per thread kind
func (r *ParticipantRepo) UnreadSummary(ctx context.Context, profileId int64) (*entity.UnreadSummary, error) {
	var rows []unreadByKind
	err := r.db.WithContext(ctx).
		Table("thread_participants p").
		Select("t.kind AS kind, COALESCE(SUM(p.unread_count), 0) AS total").
		Joins("JOIN threads t ON t.id = p.thread_id").
		Where("p.profile_id = ?", profileId).
		Group("t.kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := &entity.UnreadSummary{}
	for _, row := range rows {
		switch row.Kind {
		case constant.ThreadKindDirect:
			summary.Conversations = row.Total
		case constant.ThreadKindEnquiry:
			summary.Threads = row.Total
		}
	}
	summary.Total = summary.Conversations + summary.Threads
	return summary, nil
}
