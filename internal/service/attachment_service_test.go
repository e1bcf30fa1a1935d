package service

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00,
}

func pngOf(size int) []byte {
	data := make([]byte, size)
	copy(data, pngHeader)
	return data
}

func opaqueBytes(size int) []byte {
	return bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, size/4)
}

func (f *fixture) pendingCount(t *testing.T) int {
	t.Helper()
	if !f.mr.Exists(constant.RedisKeyPendingUploads()) {
		return 0
	}
	keys, err := f.mr.HKeys(constant.RedisKeyPendingUploads())
	require.NoError(t, err)
	return len(keys)
}

func TestAttachment_BatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	avatar, err := f.attachments.Policy(constant.UploadPolicyAvatar)
	require.NoError(t, err)

	_, err = f.attachments.Ingest(ctx, []FileInput{
		fileOf("small.png", pngOf(10*1024)),
		fileOf("big.png", pngOf(2*1024*1024)),
	}, avatar)
	require.True(t, errors.Is(err, errcode.ErrFileTooLarge))
	assert.Contains(t, err.Error(), "big.png")

	assert.Empty(t, f.store.Keys())
	assert.Zero(t, f.pendingCount(t))
}

func TestAttachment_Classification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	policy, err := f.attachments.Policy("")
	require.NoError(t, err)

	descs, err := f.attachments.Ingest(ctx, []FileInput{
		fileOf("photo.png", pngOf(2048)),
		fileOf("clip.mp4", opaqueBytes(4096)),
		fileOf(`C:\docs\notes.txt`, []byte("meeting at nine, bring the floor plan\n")),
	}, policy)
	require.NoError(t, err)
	require.Len(t, descs, 3)

	assert.Equal(t, constant.AttachmentKindImage, descs[0].Kind)
	assert.Equal(t, "image/png", descs[0].Mime)
	assert.Equal(t, constant.AttachmentKindVideo, descs[1].Kind, "extension decides when content is opaque")
	assert.Equal(t, constant.AttachmentKindDocument, descs[2].Kind)
	assert.Equal(t, "notes.txt", descs[2].Name)
	assert.Equal(t, int64(2048), descs[0].Size)

	for _, d := range descs {
		key, ok := f.store.KeyFromURL(d.URL)
		require.True(t, ok, d.URL)
		_, _, stored := f.store.Get(key)
		assert.True(t, stored)
	}
	assert.Len(t, f.store.Keys(), 3)
	assert.Equal(t, 3, f.pendingCount(t))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		mime string
		ext  string
		want string
	}{
		{"image/png", ".txt", constant.AttachmentKindImage},
		{"video/mp4", "", constant.AttachmentKindVideo},
		{"application/pdf", ".mp4", constant.AttachmentKindDocument},
		{"application/octet-stream", ".mkv", constant.AttachmentKindVideo},
		{"text/plain", ".mp4", constant.AttachmentKindVideo},
		{"text/plain", ".jpeg", constant.AttachmentKindImage},
		{"text/plain", ".txt", constant.AttachmentKindDocument},
		{"application/octet-stream", ".bin", constant.AttachmentKindDocument},
	}
	for _, tc := range cases {
		t.Run(tc.mime+tc.ext, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.mime, tc.ext))
		})
	}
}

func TestAttachment_PolicyRestrictsKinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	header, err := f.attachments.Policy(constant.UploadPolicyHeader)
	require.NoError(t, err)

	_, err = f.attachments.Ingest(ctx, []FileInput{
		fileOf("cover.png", pngOf(512)),
		fileOf("cover.txt", []byte("not an image")),
	}, header)
	assert.True(t, errors.Is(err, errcode.ErrFileTypeNotAllowed))
	assert.Empty(t, f.store.Keys())

	_, err = f.attachments.Policy("bogus")
	assert.True(t, errors.Is(err, errcode.ErrInvalidParam))
}

func TestAttachment_StorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var calls atomic.Int32
	f.store.FailPut = func(string) error {
		if calls.Add(1) == 3 {
			return errors.New("disk full")
		}
		return nil
	}

	policy, err := f.attachments.Policy("")
	require.NoError(t, err)

	files := make([]FileInput, 5)
	for i := range files {
		files[i] = fileOf("p.png", pngOf(256))
	}
	_, err = f.attachments.Ingest(ctx, files, policy)
	assert.True(t, errors.Is(err, errcode.ErrUnavailable))
	assert.Empty(t, f.store.Keys())
	assert.Zero(t, f.pendingCount(t))
}

func TestAttachment_BatchLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	policy, err := f.attachments.Policy("")
	require.NoError(t, err)

	_, err = f.attachments.Ingest(ctx, nil, policy)
	assert.True(t, errors.Is(err, errcode.ErrNoFiles))

	files := make([]FileInput, 11)
	for i := range files {
		files[i] = fileOf("p.png", pngOf(64))
	}
	_, err = f.attachments.Ingest(ctx, files, policy)
	assert.True(t, errors.Is(err, errcode.ErrTooManyFiles))

	_, err = f.attachments.Ingest(ctx, []FileInput{fileOf("empty.png", nil)}, policy)
	assert.True(t, errors.Is(err, errcode.ErrInvalidParam))
}

func TestAttachment_ClaimAndSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	policy, err := f.attachments.Policy("")
	require.NoError(t, err)

	conv, err := f.convs.FindOrCreate(ctx, user7, user42)
	require.NoError(t, err)

	used, err := f.attachments.Ingest(ctx, []FileInput{fileOf("used.png", pngOf(128))}, policy)
	require.NoError(t, err)
	msg, err := f.msgs.Append(ctx, &AppendRequest{ThreadId: conv.Id, SenderId: user7, Attachments: used})
	require.NoError(t, err)
	assert.Equal(t, constant.MsgTypeImage, msg.MsgType)
	assert.Zero(t, f.pendingCount(t), "referenced uploads leave the ledger")

	orphan, err := f.attachments.Ingest(ctx, []FileInput{fileOf("orphan.png", pngOf(128))}, policy)
	require.NoError(t, err)
	fresh, err := f.attachments.Ingest(ctx, []FileInput{fileOf("fresh.png", pngOf(128))}, policy)
	require.NoError(t, err)

	orphanKey, _ := f.store.KeyFromURL(orphan[0].URL)
	freshKey, _ := f.store.KeyFromURL(fresh[0].URL)
	usedKey, _ := f.store.KeyFromURL(used[0].URL)
	f.mr.HSet(constant.RedisKeyPendingUploads(), orphanKey, `{"mime":"image/png","size":128,"created_at":1}`)

	n, err := f.attachments.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, _, ok := f.store.Get(orphanKey)
	assert.False(t, ok, "orphan removed")
	_, _, ok = f.store.Get(freshKey)
	assert.True(t, ok, "recent upload kept")
	_, _, ok = f.store.Get(usedKey)
	assert.True(t, ok, "claimed upload kept")
	assert.Equal(t, 1, f.pendingCount(t))

	assert.NoError(t, f.attachments.Claim(ctx, []entity.AttachmentDescriptor{{URL: "https://elsewhere.example/x.png"}}))
}

func TestAttachment_SweepKeepsReferencedAfterFailedClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	policy, err := f.attachments.Policy("")
	require.NoError(t, err)

	conv, err := f.convs.FindOrCreate(ctx, user7, user42)
	require.NoError(t, err)
	descs, err := f.attachments.Ingest(ctx, []FileInput{fileOf("kept.png", pngOf(128))}, policy)
	require.NoError(t, err)

	f.mr.SetError("redis blip")
	_, err = f.msgs.Append(ctx, &AppendRequest{ThreadId: conv.Id, SenderId: user7, Attachments: descs})
	f.mr.SetError("")
	require.NoError(t, err)
	require.Equal(t, 1, f.pendingCount(t), "claim was lost")

	n, err := f.attachments.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	key, _ := f.store.KeyFromURL(descs[0].URL)
	_, _, ok := f.store.Get(key)
	assert.True(t, ok, "object referenced by a message survives")
	assert.Zero(t, f.pendingCount(t), "referenced entry leaves the ledger")
}
