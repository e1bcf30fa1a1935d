package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/parley/internal/entity"
	"gorm.io/gorm"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create creates a new message. CreatedAt must be stamped by the caller.
func (r *MessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	return tx.WithContext(ctx).Create(msg).Error
}

// GetByClientMsgId gets message by sender_id and client_msg_id (for idempotency check)
func (r *MessageRepo) GetByClientMsgId(ctx context.Context, senderId int64, clientMsgId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND client_msg_id = ?", senderId, clientMsgId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListPage lists messages ascending by seq, skipping offset rows
func (r *MessageRepo) ListPage(ctx context.Context, threadId int64, offset, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadId).
		Order("seq ASC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListAfterSeq lists messages with seq strictly greater than afterSeq
func (r *MessageRepo) ListAfterSeq(ctx context.Context, threadId, afterSeq int64, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND seq > ?", threadId, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListSince lists messages created strictly after the watermark
func (r *MessageRepo) ListSince(ctx context.Context, threadId, since int64, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND created_at > ?", threadId, since).
		Order("seq ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ReferencesObject reports whether any message attachment points at the
// object key. Keys are unique object names, so a substring match on the
// JSON column is exact enough.
func (r *MessageRepo) ReferencesObject(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("attachments LIKE ?", "%"+key+"%").
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// CountByThread counts messages in a thread
func (r *MessageRepo) CountByThread(ctx context.Context, threadId int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("thread_id = ?", threadId).
		Count(&count).Error
	return count, err
}
