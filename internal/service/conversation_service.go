package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/directory"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/repository"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/mbeoliero/parley/pkg/errcode"
	"gorm.io/gorm"
)

// ConversationService owns direct conversations: exactly one per
// unordered pair of users
type ConversationService struct {
	threadRepo      *repository.ThreadRepo
	participantRepo *repository.ParticipantRepo
	repos           *repository.Repositories
	dir             directory.Directory
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories, dir directory.Directory) *ConversationService {
	return &ConversationService{
		threadRepo:      repos.Thread,
		participantRepo: repos.Participant,
		repos:           repos,
		dir:             dir,
	}
}

// FindOrCreate returns the conversation of {userA, userB}, creating it on
// first contact. Concurrent callers for the same pair, in either order,
// all observe the same row.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB int64) (*entity.Thread, error) {
	if userA <= 0 || userB <= 0 || userA == userB {
		return nil, errcode.ErrInvalidParticipant
	}

	profiles, err := s.dir.GetProfiles(ctx, []int64{userA, userB})
	if err != nil {
		log.CtxError(ctx, "resolve participants failed: user_a=%d, user_b=%d, error=%v", userA, userB, err)
		return nil, errcode.ErrUnavailable
	}
	if _, ok := profiles[userA]; !ok {
		return nil, errcode.ErrInvalidParticipant.WithDetail("profile %d not found", userA)
	}
	if _, ok := profiles[userB]; !ok {
		return nil, errcode.ErrTargetNotFound.WithDetail("profile %d not found", userB)
	}

	pairKey := entity.GenPairKey(userA, userB)
	var conv *entity.Thread

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		created, err := s.threadRepo.InsertDirectIfAbsent(ctx, tx, &entity.Thread{
			Kind:        constant.ThreadKindDirect,
			PairKey:     &pairKey,
			InitiatorId: userA,
			TargetId:    userB,
			IsActive:    true,
		})
		if err != nil {
			return err
		}

		conv, err = s.threadRepo.GetByPairKey(ctx, tx, pairKey)
		if err != nil {
			return err
		}
		if conv == nil {
			return errors.New("direct thread vanished after insert")
		}

		if created {
			return s.participantRepo.CreateBatch(ctx, tx, conv.Id, userA, userB)
		}

		log.CtxDebug(ctx, "conversation already exists: pair_key=%s, conversation_id=%d", pairKey, conv.Id)
		if !conv.IsActive {
			conv.IsActive = true
			return s.threadRepo.SetActive(ctx, tx, conv.Id, true)
		}
		return nil
	})
	if err != nil {
		log.CtxError(ctx, "find or create conversation failed: pair_key=%s, error=%v", pairKey, err)
		return nil, errcode.ErrUnavailable
	}

	return conv, nil
}

// Open finds or creates the conversation with peerId and returns it as
// seen by userId
func (s *ConversationService) Open(ctx context.Context, userId, peerId int64) (*entity.ConversationInfo, error) {
	conv, err := s.FindOrCreate(ctx, userId, peerId)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userId, conv.Id)
}

// List lists the user's conversations, most recently active first
func (s *ConversationService) List(ctx context.Context, userId int64) ([]*entity.ConversationInfo, error) {
	convs, err := s.threadRepo.ListByParticipant(ctx, userId, constant.ThreadKindDirect)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%d, error=%v", userId, err)
		return nil, errcode.ErrUnavailable
	}

	peerIds := make([]int64, 0, len(convs))
	for _, conv := range convs {
		peerIds = append(peerIds, conv.PeerOf(userId))
	}
	peers := resolveDisplay(ctx, s.dir, peerIds)

	result := make([]*entity.ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		result = append(result, conv.ToConversationInfo(userId, peers[conv.PeerOf(userId)]))
	}
	return result, nil
}

// Get gets a conversation the user takes part in
func (s *ConversationService) Get(ctx context.Context, userId, convId int64) (*entity.ConversationInfo, error) {
	conv, err := s.getWithState(ctx, userId, convId)
	if err != nil {
		return nil, err
	}
	peers := resolveDisplay(ctx, s.dir, []int64{conv.PeerOf(userId)})
	return conv.ToConversationInfo(userId, peers[conv.PeerOf(userId)]), nil
}

// Deactivate hides a conversation until the next message or open
func (s *ConversationService) Deactivate(ctx context.Context, userId, convId int64) error {
	if _, err := s.getWithState(ctx, userId, convId); err != nil {
		return err
	}
	if err := s.threadRepo.SetActive(ctx, s.repos.DB, convId, false); err != nil {
		log.CtxError(ctx, "deactivate conversation failed: conversation_id=%d, error=%v", convId, err)
		return errcode.ErrUnavailable
	}
	log.CtxInfo(ctx, "conversation deactivated: conversation_id=%d, user_id=%d", convId, userId)
	return nil
}

func (s *ConversationService) getWithState(ctx context.Context, userId, convId int64) (*entity.ThreadWithState, error) {
	conv, err := s.threadRepo.GetWithState(ctx, convId, userId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: user_id=%d, conversation_id=%d, error=%v", userId, convId, err)
		return nil, errcode.ErrUnavailable
	}
	if conv == nil || !conv.IsDirect() {
		return nil, errcode.ErrTargetNotFound
	}
	return conv, nil
}
