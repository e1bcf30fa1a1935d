package repository

import (
	"context"
	"testing"

	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/testutil"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	_, rdb := testutil.NewRedis(t)
	return NewRepositoriesWith(testutil.NewDB(t), rdb)
}

func directThread(a, b int64) *entity.Thread {
	key := entity.GenPairKey(a, b)
	return &entity.Thread{
		Kind:        constant.ThreadKindDirect,
		PairKey:     &key,
		InitiatorId: a,
		TargetId:    b,
		IsActive:    true,
	}
}

func TestThreadRepo_InsertDirectIfAbsent(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	var firstId int64
	err := repos.Transaction(ctx, func(tx *gorm.DB) error {
		created, err := repos.Thread.InsertDirectIfAbsent(ctx, tx, directThread(7, 42))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = repos.Thread.InsertDirectIfAbsent(ctx, tx, directThread(42, 7))
		require.NoError(t, err)
		assert.False(t, created)

		got, err := repos.Thread.GetByPairKey(ctx, tx, "7:42")
		require.NoError(t, err)
		require.NotNil(t, got)
		firstId = got.Id
		return nil
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, repos.DB.Model(&entity.Thread{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// enquiry threads carry no pair key and never collide
	for i := 0; i < 2; i++ {
		require.NoError(t, repos.Thread.Create(ctx, repos.DB, &entity.Thread{
			Kind: constant.ThreadKindEnquiry, Title: "Room block", InitiatorId: 7, TargetId: 42, IsActive: true,
		}))
	}
	require.NoError(t, repos.DB.Model(&entity.Thread{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
	assert.NotZero(t, firstId)
}

func TestThreadRepo_AllocSeq(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	thread := directThread(1, 2)
	require.NoError(t, repos.Thread.Create(ctx, repos.DB, thread))

	for want := int64(1); want <= 3; want++ {
		got, err := repos.Thread.AllocSeq(ctx, repos.DB, thread.Id)
		require.NoError(t, err)
		assert.Equal(t, want, got.MaxSeq)
	}

	_, err := repos.Thread.AllocSeq(ctx, repos.DB, thread.Id+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestParticipantRepo_UnreadLifecycle(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	thread := directThread(1, 2)
	require.NoError(t, repos.Thread.Create(ctx, repos.DB, thread))
	require.NoError(t, repos.Participant.CreateBatch(ctx, repos.DB, thread.Id, 1, 2))
	// duplicate rows are skipped
	require.NoError(t, repos.Participant.CreateBatch(ctx, repos.DB, thread.Id, 1, 2))

	rows, err := repos.Participant.ListByThread(ctx, thread.Id)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for i := 0; i < 3; i++ {
		n, err := repos.Participant.IncrementUnread(ctx, repos.DB, thread.Id, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	p2, err := repos.Participant.Get(ctx, thread.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p2.UnreadCount)
	p1, err := repos.Participant.Get(ctx, thread.Id, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p1.UnreadCount)

	summary, err := repos.Participant.UnreadSummary(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Conversations)
	assert.Equal(t, int64(3), summary.Total)

	_, err = repos.Participant.MarkRead(ctx, thread.Id, 2, 5000)
	require.NoError(t, err)
	_, err = repos.Participant.MarkRead(ctx, thread.Id, 2, 4000)
	require.NoError(t, err)
	p2, err = repos.Participant.Get(ctx, thread.Id, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p2.UnreadCount)
	assert.Equal(t, int64(5000), p2.LastReadAt, "read watermark never moves back")

	n, err := repos.Participant.MarkRead(ctx, thread.Id, 99, 5000)
	require.NoError(t, err)
	assert.Zero(t, n)

	missing, err := repos.Participant.Get(ctx, thread.Id, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestThreadRepo_ListByParticipant(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	older := directThread(1, 2)
	newer := directThread(1, 3)
	other := directThread(2, 3)
	for _, th := range []*entity.Thread{older, newer, other} {
		require.NoError(t, repos.Thread.Create(ctx, repos.DB, th))
		require.NoError(t, repos.Participant.CreateBatch(ctx, repos.DB, th.Id, th.InitiatorId, th.TargetId))
	}
	require.NoError(t, repos.Thread.TouchLastMessage(ctx, repos.DB, &entity.Message{ThreadId: older.Id, SenderId: 2, CreatedAt: 100}, "hi"))
	require.NoError(t, repos.Thread.TouchLastMessage(ctx, repos.DB, &entity.Message{ThreadId: newer.Id, SenderId: 3, CreatedAt: 200}, "yo"))
	_, err := repos.Participant.IncrementUnread(ctx, repos.DB, newer.Id, 3)
	require.NoError(t, err)

	list, err := repos.Thread.ListByParticipant(ctx, 1, constant.ThreadKindDirect)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.Id, list[0].Id)
	assert.Equal(t, int64(1), list[0].UnreadCount)
	assert.Equal(t, "yo", list[0].LastMessagePreview)
	assert.Equal(t, older.Id, list[1].Id)

	enquiries, err := repos.Thread.ListByParticipant(ctx, 1, constant.ThreadKindEnquiry)
	require.NoError(t, err)
	assert.Empty(t, enquiries)

	ws, err := repos.Thread.GetWithState(ctx, other.Id, 1)
	require.NoError(t, err)
	assert.Nil(t, ws, "non participant sees nothing")

	ws, err = repos.Thread.GetWithState(ctx, other.Id, 2)
	require.NoError(t, err)
	require.NotNil(t, ws)
	require.NotNil(t, ws.PairKey)
	assert.Equal(t, "2:3", *ws.PairKey)
}

func TestMessageRepo_Cursors(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	thread := directThread(1, 2)
	require.NoError(t, repos.Thread.Create(ctx, repos.DB, thread))

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, repos.Message.Create(ctx, repos.DB, &entity.Message{
			ThreadId:    thread.Id,
			Seq:         i,
			ClientMsgId: "c" + string(rune('0'+i)),
			SenderId:    1,
			MsgType:     constant.MsgTypeText,
			Body:        "m",
			CreatedAt:   1000 + (i/2)*10,
		}))
	}

	page, err := repos.Message.ListPage(ctx, thread.Id, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].Seq)

	after, err := repos.Message.ListAfterSeq(ctx, thread.Id, 3, 10)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, int64(4), after[0].Seq)

	// created_at: 1000, 1010, 1010, 1020, 1020
	since, err := repos.Message.ListSince(ctx, thread.Id, 1010, 10)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(4), since[0].Seq)

	dup, err := repos.Message.GetByClientMsgId(ctx, 1, "c3")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, int64(3), dup.Seq)

	err = repos.Message.Create(ctx, repos.DB, &entity.Message{ThreadId: thread.Id, Seq: 6, ClientMsgId: "c3", SenderId: 1, MsgType: "text"})
	assert.Error(t, err, "client message ids are unique per sender")

	count, err := repos.Message.CountByThread(ctx, thread.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}
