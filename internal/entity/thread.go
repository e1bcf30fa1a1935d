package entity

import "github.com/mbeoliero/parley/pkg/constant"

// Thread is a direct conversation (kind=direct) or an enquiry thread
// (kind=enquiry). Direct threads carry a pair key, which is unique.
type Thread struct {
	Id                 int64   `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Kind               string  `json:"kind" gorm:"column:kind;type:varchar(16);not null;index:idx_threads_kind"`
	PairKey            *string `json:"pair_key,omitempty" gorm:"column:pair_key;type:varchar(64);uniqueIndex:uk_threads_pair_key"`
	Title              string  `json:"title" gorm:"column:title;type:varchar(255)"`
	ThreadType         string  `json:"thread_type" gorm:"column:thread_type;type:varchar(16)"`
	InitiatorId        int64   `json:"initiator_id" gorm:"column:initiator_id;not null"`
	TargetId           int64   `json:"target_id" gorm:"column:target_id;not null"`
	IsActive           bool    `json:"is_active" gorm:"column:is_active;not null"`
	MaxSeq             int64   `json:"max_seq" gorm:"column:max_seq;not null;default:0"`
	LastMessageAt      int64   `json:"last_message_at" gorm:"column:last_message_at;not null;default:0"`
	LastMessagePreview string  `json:"last_message_preview" gorm:"column:last_message_preview;type:varchar(600)"`
	LastSenderId       int64   `json:"last_sender_id" gorm:"column:last_sender_id;not null;default:0"`
	CreatedAt          int64   `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt          int64   `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Thread
func (Thread) TableName() string {
	return "threads"
}

// IsDirect reports whether the thread is a two-party direct conversation
func (t *Thread) IsDirect() bool {
	return t.Kind == constant.ThreadKindDirect
}

// PeerOf returns the other side of the thread for the given participant
func (t *Thread) PeerOf(profileId int64) int64 {
	if t.InitiatorId == profileId {
		return t.TargetId
	}
	return t.InitiatorId
}

// ThreadParticipant holds per-profile read state on a thread
type ThreadParticipant struct {
	Id          int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ThreadId    int64 `json:"thread_id" gorm:"column:thread_id;not null;uniqueIndex:uk_participant_thread_profile,priority:1"`
	ProfileId   int64 `json:"profile_id" gorm:"column:profile_id;not null;uniqueIndex:uk_participant_thread_profile,priority:2;index:idx_participant_profile"`
	UnreadCount int64 `json:"unread_count" gorm:"column:unread_count;not null;default:0"`
	LastReadAt  int64 `json:"last_read_at" gorm:"column:last_read_at;not null;default:0"`
	JoinedAt    int64 `json:"joined_at" gorm:"column:joined_at;not null"`
}

// TableName returns the table name for ThreadParticipant
func (ThreadParticipant) TableName() string {
	return "thread_participants"
}

// ThreadWithState is a thread joined with the viewer's participant row
type ThreadWithState struct {
	Thread
	UnreadCount int64 `gorm:"column:unread_count"`
	LastReadAt  int64 `gorm:"column:last_read_at"`
}

// ThreadInfo represents an enquiry thread for API response
type ThreadInfo struct {
	ThreadId           int64        `json:"thread_id"`
	Title              string       `json:"title"`
	ThreadType         string       `json:"thread_type"`
	InitiatorId        int64        `json:"initiator_id"`
	TargetId           int64        `json:"target_id"`
	Counterpart        *ProfileInfo `json:"counterpart,omitempty"`
	IsActive           bool         `json:"is_active"`
	LastMessageAt      int64        `json:"last_message_at"`
	LastMessagePreview string       `json:"last_message_preview"`
	LastSenderId       int64        `json:"last_sender_id"`
	UnreadCount        int64        `json:"unread_count"`
	LastReadAt         int64        `json:"last_read_at"`
	CreatedAt          int64        `json:"created_at"`
}

// ToThreadInfo converts a thread to its API view for the given viewer state
func (t *ThreadWithState) ToThreadInfo(counterpart *ProfileInfo) *ThreadInfo {
	return &ThreadInfo{
		ThreadId:           t.Id,
		Title:              t.Title,
		ThreadType:         t.ThreadType,
		InitiatorId:        t.InitiatorId,
		TargetId:           t.TargetId,
		Counterpart:        counterpart,
		IsActive:           t.IsActive,
		LastMessageAt:      t.LastMessageAt,
		LastMessagePreview: t.LastMessagePreview,
		LastSenderId:       t.LastSenderId,
		UnreadCount:        t.UnreadCount,
		LastReadAt:         t.LastReadAt,
		CreatedAt:          t.CreatedAt,
	}
}

// UnreadSummary is the total unread state of a profile
type UnreadSummary struct {
	Total         int64 `json:"total"`
	Conversations int64 `json:"conversations"`
	Threads       int64 `json:"threads"`
}
