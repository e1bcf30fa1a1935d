package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/directory"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/repository"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/mbeoliero/parley/pkg/errcode"
	"gorm.io/gorm"
)

// ThreadService owns enquiry threads and per participant read state
type ThreadService struct {
	threadRepo      *repository.ThreadRepo
	participantRepo *repository.ParticipantRepo
	repos           *repository.Repositories
	dir             directory.Directory
}

// NewThreadService creates a new ThreadService
func NewThreadService(repos *repository.Repositories, dir directory.Directory) *ThreadService {
	return &ThreadService{
		threadRepo:      repos.Thread,
		participantRepo: repos.Participant,
		repos:           repos,
		dir:             dir,
	}
}

// CreateThreadRequest represents create thread request
type CreateThreadRequest struct {
	InitiatorId int64  `json:"-" validate:"gt=0"`
	TargetId    int64  `json:"target_id" validate:"gt=0"`
	Title       string `json:"title" validate:"required,max=255"`
	ThreadType  string `json:"thread_type" validate:"omitempty,oneof=enquiry direct"`
}

// Create creates an enquiry thread with one participant row per side.
// Threads are not deduplicated: every subject gets its own thread.
func (s *ThreadService) Create(ctx context.Context, req *CreateThreadRequest) (*entity.ThreadInfo, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.ThreadType == "" {
		req.ThreadType = constant.ThreadTypeEnquiry
	}
	if req.InitiatorId <= 0 || req.InitiatorId == req.TargetId {
		return nil, errcode.ErrInvalidParticipant
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.dir.GetProfile(ctx, req.InitiatorId); err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			return nil, errcode.ErrInvalidParticipant.WithDetail("profile %d not found", req.InitiatorId)
		}
		log.CtxError(ctx, "resolve initiator failed: profile_id=%d, error=%v", req.InitiatorId, err)
		return nil, errcode.ErrUnavailable
	}
	target, err := s.dir.GetProfile(ctx, req.TargetId)
	if err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			return nil, errcode.ErrTargetNotFound.WithDetail("profile %d not found", req.TargetId)
		}
		log.CtxError(ctx, "resolve target failed: profile_id=%d, error=%v", req.TargetId, err)
		return nil, errcode.ErrUnavailable
	}

	thread := &entity.Thread{
		Kind:        constant.ThreadKindEnquiry,
		Title:       req.Title,
		ThreadType:  req.ThreadType,
		InitiatorId: req.InitiatorId,
		TargetId:    req.TargetId,
		IsActive:    true,
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.threadRepo.Create(ctx, tx, thread); err != nil {
			return err
		}
		return s.participantRepo.CreateBatch(ctx, tx, thread.Id, req.InitiatorId, req.TargetId)
	})
	if err != nil {
		log.CtxError(ctx, "create thread failed: initiator_id=%d, target_id=%d, error=%v", req.InitiatorId, req.TargetId, err)
		return nil, errcode.ErrUnavailable
	}

	log.CtxInfo(ctx, "thread created: thread_id=%d, initiator_id=%d, target_id=%d", thread.Id, req.InitiatorId, req.TargetId)
	state := &entity.ThreadWithState{Thread: *thread}
	return state.ToThreadInfo(target.ToProfileInfo()), nil
}

// List lists the profile's enquiry threads, most recently active first
func (s *ThreadService) List(ctx context.Context, profileId int64) ([]*entity.ThreadInfo, error) {
	threads, err := s.threadRepo.ListByParticipant(ctx, profileId, constant.ThreadKindEnquiry)
	if err != nil {
		log.CtxError(ctx, "list threads failed: profile_id=%d, error=%v", profileId, err)
		return nil, errcode.ErrUnavailable
	}

	ids := make([]int64, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.PeerOf(profileId))
	}
	display := resolveDisplay(ctx, s.dir, ids)

	result := make([]*entity.ThreadInfo, 0, len(threads))
	for _, t := range threads {
		result = append(result, t.ToThreadInfo(display[t.PeerOf(profileId)]))
	}
	return result, nil
}

// Get gets an enquiry thread the profile takes part in
func (s *ThreadService) Get(ctx context.Context, profileId, threadId int64) (*entity.ThreadInfo, error) {
	t, err := s.threadRepo.GetWithState(ctx, threadId, profileId)
	if err != nil {
		log.CtxError(ctx, "get thread failed: profile_id=%d, thread_id=%d, error=%v", profileId, threadId, err)
		return nil, errcode.ErrUnavailable
	}
	if t == nil || t.Kind != constant.ThreadKindEnquiry {
		return nil, errcode.ErrTargetNotFound
	}
	display := resolveDisplay(ctx, s.dir, []int64{t.PeerOf(profileId)})
	return t.ToThreadInfo(display[t.PeerOf(profileId)]), nil
}

// MarkRead resets the caller's unread counter on a thread of either kind.
// A missing participant row is not an error.
func (s *ThreadService) MarkRead(ctx context.Context, threadId, profileId int64) error {
	n, err := s.participantRepo.MarkRead(ctx, threadId, profileId, entity.NowUnixMilli())
	if err != nil {
		log.CtxError(ctx, "mark read failed: thread_id=%d, profile_id=%d, error=%v", threadId, profileId, err)
		return errcode.ErrUnavailable
	}
	if n == 0 {
		log.CtxDebug(ctx, "mark read skipped, no participant: thread_id=%d, profile_id=%d", threadId, profileId)
	}
	return nil
}

// IncrementUnread bumps every other participant's counter. It must run in
// the transaction that persists the message, so a retried append that finds
// its message already stored never counts twice.
func (s *ThreadService) IncrementUnread(ctx context.Context, tx *gorm.DB, threadId, excludingProfileId int64) error {
	_, err := s.participantRepo.IncrementUnread(ctx, tx, threadId, excludingProfileId)
	return err
}

// UnreadSummary totals the profile's unread counters
func (s *ThreadService) UnreadSummary(ctx context.Context, profileId int64) (*entity.UnreadSummary, error) {
	summary, err := s.participantRepo.UnreadSummary(ctx, profileId)
	if err != nil {
		log.CtxError(ctx, "unread summary failed: profile_id=%d, error=%v", profileId, err)
		return nil, errcode.ErrUnavailable
	}
	return summary, nil
}
