package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mbeoliero/parley/internal/config"
	"github.com/mbeoliero/parley/internal/directory"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/internal/repository"
	"github.com/mbeoliero/parley/internal/testutil"
	"github.com/mbeoliero/parley/pkg/objstore"
	"github.com/stretchr/testify/require"
)

const (
	userX     int64 = 3
	user7     int64 = 7
	user42    int64 = 42
	profileA  int64 = 1001
	profileB  int64 = 2002
	stranger  int64 = 9999
	unknownId int64 = 123456
)

type fixture struct {
	repos       *repository.Repositories
	mr          *miniredis.Miniredis
	dir         *directory.StaticDirectory
	store       *objstore.MemoryStore
	convs       *ConversationService
	threads     *ThreadService
	msgs        *MessageService
	attachments *AttachmentService
	profiles    *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, rdb := testutil.NewRedis(t)
	repos := repository.NewRepositoriesWith(testutil.NewDB(t), rdb)

	var cfg config.Config
	cfg.ApplyDefaults()

	dir := directory.NewStaticDirectory(
		&entity.Profile{Id: userX, DisplayName: "User X"},
		&entity.Profile{Id: user7, DisplayName: "Seven"},
		&entity.Profile{Id: user42, DisplayName: "Forty Two"},
		&entity.Profile{Id: profileA, DisplayName: "Events Co", IsVerified: true},
		&entity.Profile{Id: profileB, DisplayName: "Harbour Hotel", IsCompany: true, IsVerified: true},
		&entity.Profile{Id: stranger, DisplayName: "Stranger"},
	)
	store := objstore.NewMemoryStore("https://cdn.test/media")

	f := &fixture{
		repos: repos,
		mr:    mr,
		dir:   dir,
		store: store,
	}
	f.convs = NewConversationService(repos, dir)
	f.threads = NewThreadService(repos, dir)
	f.msgs = NewMessageService(repos, f.threads, cfg.History)
	f.attachments = NewAttachmentService(store, rdb, cfg.Attachment)
	f.msgs.SetAttachmentClaimer(f.attachments)
	f.attachments.SetReferenceChecker(repos.Message)
	f.profiles = NewProfileService(dir)
	return f
}

func (f *fixture) participant(t *testing.T, threadId, profileId int64) *entity.ThreadParticipant {
	t.Helper()
	p, err := f.repos.Participant.Get(context.Background(), threadId, profileId)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func fileOf(name string, data []byte) FileInput {
	return FileInput{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
