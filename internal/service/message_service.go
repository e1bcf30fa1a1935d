package service

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/config"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/repository"
	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/mbeoliero/parley/pkg/idgen"
	"gorm.io/gorm"
)

// AttachmentClaimer takes message-referenced uploads off the orphan ledger
type AttachmentClaimer interface {
	Claim(ctx context.Context, attachments []entity.AttachmentDescriptor) error
}

// MessageService appends messages to threads of either kind and serves
// their history
type MessageService struct {
	threadRepo      *repository.ThreadRepo
	participantRepo *repository.ParticipantRepo
	msgRepo         *repository.MessageRepo
	repos           *repository.Repositories
	threads         *ThreadService
	claimer         AttachmentClaimer
	idGen           idgen.IDGenerator
	history         config.HistoryConfig
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories, threads *ThreadService, history config.HistoryConfig) *MessageService {
	return &MessageService{
		threadRepo:      repos.Thread,
		participantRepo: repos.Participant,
		msgRepo:         repos.Message,
		repos:           repos,
		threads:         threads,
		history:         history,
	}
}

// SetAttachmentClaimer sets the attachment ledger
func (s *MessageService) SetAttachmentClaimer(claimer AttachmentClaimer) {
	s.claimer = claimer
}

// SetIDGenerator sets the generator for server side client_msg_id values
func (s *MessageService) SetIDGenerator(gen idgen.IDGenerator) {
	s.idGen = gen
}

func (s *MessageService) nextClientMsgId() (string, error) {
	if s.idGen != nil {
		return s.idGen.NextID()
	}
	return idgen.NextID()
}

// AppendRequest represents append message request. Kind, when set, pins
// the thread kind the caller expects.
type AppendRequest struct {
	ThreadId    int64                         `json:"-" validate:"gt=0"`
	SenderId    int64                         `json:"-" validate:"gt=0"`
	Kind        string                        `json:"-" validate:"omitempty,oneof=direct enquiry"`
	ClientMsgId string                        `json:"client_msg_id" validate:"max=64"`
	Body        string                        `json:"body"`
	Attachments []entity.AttachmentDescriptor `json:"attachments" validate:"max=10"`
}

// Append stores a message and, in the same transaction, allocates its seq,
// updates the thread preview and bumps the unread counters of everyone but
// the sender. Retrying with the same client_msg_id returns the stored
// message.
func (s *MessageService) Append(ctx context.Context, req *AppendRequest) (*entity.Message, error) {
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" && len(req.Attachments) == 0 {
		return nil, errcode.ErrEmptyMessage
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	for i, a := range req.Attachments {
		if a.URL == "" || !entity.IsValidKind(a.Kind) {
			return nil, errcode.ErrInvalidAttachment.WithDetail("attachment %d", i)
		}
	}

	if req.ClientMsgId != "" {
		existing, err := s.findDuplicate(ctx, req)
		if err != nil || existing != nil {
			return existing, err
		}
	} else {
		id, err := s.nextClientMsgId()
		if err != nil {
			log.CtxError(ctx, "generate client_msg_id failed: %v", err)
			return nil, errcode.ErrUnavailable
		}
		req.ClientMsgId = id
	}

	var msg *entity.Message
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := s.participantRepo.GetWithTx(ctx, tx, req.ThreadId, req.SenderId)
		if err != nil {
			return err
		}
		if p == nil {
			return errcode.ErrTargetNotFound
		}

		thread, err := s.threadRepo.AllocSeq(ctx, tx, req.ThreadId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errcode.ErrTargetNotFound
			}
			return err
		}
		if req.Kind != "" && thread.Kind != req.Kind {
			return errcode.ErrTargetNotFound
		}

		// created_at never goes backwards within a thread
		createdAt := entity.NowUnixMilli()
		if thread.LastMessageAt > createdAt {
			createdAt = thread.LastMessageAt
		}

		msg = &entity.Message{
			ThreadId:    req.ThreadId,
			Seq:         thread.MaxSeq,
			ClientMsgId: req.ClientMsgId,
			SenderId:    req.SenderId,
			MsgType:     entity.DetectMsgType(req.Attachments),
			Body:        req.Body,
			Attachments: entity.Attachments(req.Attachments),
			CreatedAt:   createdAt,
		}
		if err := s.msgRepo.Create(ctx, tx, msg); err != nil {
			return err
		}

		if err := s.threadRepo.TouchLastMessage(ctx, tx, msg, entity.BuildPreview(req.Body, req.Attachments)); err != nil {
			return err
		}

		return s.threads.IncrementUnread(ctx, tx, req.ThreadId, req.SenderId)
	})
	if err != nil {
		if e, ok := asBizError(err); ok {
			return nil, e
		}
		// a concurrent retry with the same client_msg_id won the insert
		if existing, lookupErr := s.msgRepo.GetByClientMsgId(ctx, req.SenderId, req.ClientMsgId); lookupErr == nil && existing != nil && existing.ThreadId == req.ThreadId {
			log.CtxDebug(ctx, "duplicate message resolved after conflict: client_msg_id=%s", req.ClientMsgId)
			return existing, nil
		}
		log.CtxError(ctx, "append message failed: thread_id=%d, sender_id=%d, error=%v", req.ThreadId, req.SenderId, err)
		return nil, errcode.ErrUnavailable
	}

	if s.claimer != nil && len(req.Attachments) > 0 {
		if err := s.claimer.Claim(ctx, req.Attachments); err != nil {
			log.CtxWarn(ctx, "claim attachments failed: message_id=%d, error=%v", msg.Id, err)
		}
	}

	log.CtxInfo(ctx, "message appended: thread_id=%d, sender_id=%d, seq=%d", msg.ThreadId, msg.SenderId, msg.Seq)
	return msg, nil
}

func (s *MessageService) findDuplicate(ctx context.Context, req *AppendRequest) (*entity.Message, error) {
	existing, err := s.msgRepo.GetByClientMsgId(ctx, req.SenderId, req.ClientMsgId)
	if err != nil {
		log.CtxError(ctx, "check idempotency failed: %v", err)
		return nil, errcode.ErrUnavailable
	}
	if existing == nil {
		return nil, nil
	}
	if existing.ThreadId != req.ThreadId {
		return nil, errcode.ErrInvalidParam.WithDetail("client_msg_id already used in another thread")
	}
	log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", req.ClientMsgId)
	return existing, nil
}

// HistoryRequest represents history request. AfterSeq wins over
// SinceCreatedAt, which wins over Page.
type HistoryRequest struct {
	ThreadId       int64  `validate:"gt=0"`
	ViewerId       int64  `validate:"gt=0"`
	Kind           string `validate:"omitempty,oneof=direct enquiry"`
	Page           int    `validate:"gte=0,lte=1000000"`
	PageSize       int    `validate:"gte=0"`
	SinceCreatedAt int64  `validate:"gte=0"`
	AfterSeq       int64  `validate:"gte=0"`
}

// HistoryResult is one page of history, oldest first
type HistoryResult struct {
	Messages     []*entity.MessageInfo `json:"messages"`
	HasMore      bool                  `json:"has_more"`
	NextAfterSeq int64                 `json:"next_after_seq"`
}

// History returns messages ascending by seq
func (s *MessageService) History(ctx context.Context, req *HistoryRequest) (*HistoryResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	participants, err := s.checkViewer(ctx, req.ThreadId, req.ViewerId, req.Kind)
	if err != nil {
		return nil, err
	}

	size := s.pageSize(req.PageSize)
	var messages []*entity.Message
	switch {
	case req.AfterSeq > 0:
		messages, err = s.msgRepo.ListAfterSeq(ctx, req.ThreadId, req.AfterSeq, size+1)
	case req.SinceCreatedAt > 0:
		messages, err = s.msgRepo.ListSince(ctx, req.ThreadId, req.SinceCreatedAt, size+1)
	default:
		page := req.Page
		if page < 1 {
			page = 1
		}
		messages, err = s.msgRepo.ListPage(ctx, req.ThreadId, (page-1)*size, size+1)
	}
	if err != nil {
		log.CtxError(ctx, "load history failed: thread_id=%d, error=%v", req.ThreadId, err)
		return nil, errcode.ErrUnavailable
	}

	result := &HistoryResult{NextAfterSeq: req.AfterSeq}
	if len(messages) > size {
		result.HasMore = true
		messages = messages[:size]
	}
	if len(messages) > 0 {
		result.NextAfterSeq = messages[len(messages)-1].Seq
	}

	result.Messages = make([]*entity.MessageInfo, 0, len(messages))
	for _, m := range messages {
		result.Messages = append(result.Messages, m.ToMessageInfo(peerReadAt(participants, m.SenderId)))
	}
	return result, nil
}

// Iterate walks the whole history of a thread lazily, one page per query.
// Each call of the returned sequence starts over from the first message.
func (s *MessageService) Iterate(ctx context.Context, threadId, viewerId int64) iter.Seq2[*entity.Message, error] {
	return func(yield func(*entity.Message, error) bool) {
		if _, err := s.checkViewer(ctx, threadId, viewerId, ""); err != nil {
			yield(nil, err)
			return
		}

		size := s.pageSize(0)
		var after int64
		for {
			page, err := s.msgRepo.ListAfterSeq(ctx, threadId, after, size)
			if err != nil {
				log.CtxError(ctx, "iterate history failed: thread_id=%d, after_seq=%d, error=%v", threadId, after, err)
				yield(nil, errcode.ErrUnavailable)
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < size {
				return
			}
			after = page[len(page)-1].Seq
		}
	}
}

func (s *MessageService) pageSize(requested int) int {
	size := requested
	if size <= 0 {
		size = s.history.PageSize
	}
	if size <= 0 {
		size = 30
	}
	if s.history.MaxPageSize > 0 && size > s.history.MaxPageSize {
		size = s.history.MaxPageSize
	}
	return size
}

func (s *MessageService) checkViewer(ctx context.Context, threadId, viewerId int64, kind string) ([]*entity.ThreadParticipant, error) {
	thread, err := s.threadRepo.GetById(ctx, threadId)
	if err != nil {
		log.CtxError(ctx, "get thread failed: thread_id=%d, error=%v", threadId, err)
		return nil, errcode.ErrUnavailable
	}
	if thread == nil || (kind != "" && thread.Kind != kind) {
		return nil, errcode.ErrTargetNotFound
	}

	participants, err := s.participantRepo.ListByThread(ctx, threadId)
	if err != nil {
		log.CtxError(ctx, "list participants failed: thread_id=%d, error=%v", threadId, err)
		return nil, errcode.ErrUnavailable
	}
	for _, p := range participants {
		if p.ProfileId == viewerId {
			return participants, nil
		}
	}
	return nil, errcode.ErrTargetNotFound
}

// peerReadAt is the oldest read watermark among participants other than
// the sender
func peerReadAt(participants []*entity.ThreadParticipant, senderId int64) int64 {
	var (
		oldest int64
		found  bool
	)
	for _, p := range participants {
		if p.ProfileId == senderId {
			continue
		}
		if !found || p.LastReadAt < oldest {
			oldest = p.LastReadAt
			found = true
		}
	}
	return oldest
}
