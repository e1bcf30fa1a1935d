package service

import (
	"context"
	"errors"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/config"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/mbeoliero/parley/pkg/objstore"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	sniffLen          = 3072
	uploadConcurrency = 4
)

var (
	imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg", ".heic", ".heif", ".avif"}
	videoExts = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v", ".3gp"}

	// mimetype falls back to these when it recognises nothing; binary data it
	// cannot place often comes out as text/plain
	genericMimes = []string{"application/octet-stream", "text/plain"}
)

// FileInput is one file of an upload batch. Open may be called more than
// once.
type FileInput struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Policy is a caller selected upload ceiling
type Policy struct {
	Name         string
	MaxSize      int64
	AllowedKinds []string
}

func (p Policy) allows(kind string) bool {
	return len(p.AllowedKinds) == 0 || slices.Contains(p.AllowedKinds, kind)
}

// pendingUpload is the ledger entry of an upload not yet referenced by a
// message
type pendingUpload struct {
	Mime      string `json:"mime"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
}

// ReferenceChecker tells whether a stored object is used by a message
type ReferenceChecker interface {
	ReferencesObject(ctx context.Context, key string) (bool, error)
}

// AttachmentService stores attachment batches and garbage collects uploads
// that never made it into a message
type AttachmentService struct {
	store objstore.Store
	rdb   *redis.Client
	cfg   config.AttachmentConfig
	refs  ReferenceChecker
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(store objstore.Store, rdb *redis.Client, cfg config.AttachmentConfig) *AttachmentService {
	return &AttachmentService{store: store, rdb: rdb, cfg: cfg}
}

// SetReferenceChecker makes Sweep keep objects that messages reference even
// when their claim never reached the ledger
func (s *AttachmentService) SetReferenceChecker(refs ReferenceChecker) {
	s.refs = refs
}

// Policy resolves a policy by name; empty selects the general attachment
// policy
func (s *AttachmentService) Policy(name string) (Policy, error) {
	switch name {
	case "", constant.UploadPolicyAttachment:
		return Policy{Name: constant.UploadPolicyAttachment, MaxSize: s.cfg.MaxFileSize, AllowedKinds: s.cfg.AllowedKinds}, nil
	case constant.UploadPolicyAvatar:
		return Policy{Name: name, MaxSize: s.cfg.AvatarMaxSize, AllowedKinds: []string{constant.AttachmentKindImage}}, nil
	case constant.UploadPolicyHeader:
		return Policy{Name: name, MaxSize: s.cfg.HeaderMaxSize, AllowedKinds: []string{constant.AttachmentKindImage}}, nil
	}
	return Policy{}, errcode.ErrInvalidParam.WithDetail("unknown upload policy %q", name)
}

type sniffed struct {
	mime string
	kind string
	ext  string
}

// Ingest validates the whole batch before storing anything, then uploads
// concurrently. Either every file is stored and recorded as pending, or
// nothing from the batch remains.
func (s *AttachmentService) Ingest(ctx context.Context, files []FileInput, policy Policy) ([]entity.AttachmentDescriptor, error) {
	if len(files) == 0 {
		return nil, errcode.ErrNoFiles
	}
	if s.cfg.MaxFiles > 0 && len(files) > s.cfg.MaxFiles {
		return nil, errcode.ErrTooManyFiles.WithDetail("%d files, at most %d", len(files), s.cfg.MaxFiles)
	}

	for _, f := range files {
		if f.Size <= 0 {
			return nil, errcode.ErrInvalidParam.WithDetail("%s is empty", baseName(f.Name))
		}
		if policy.MaxSize > 0 && f.Size > policy.MaxSize {
			return nil, errcode.ErrFileTooLarge.WithDetail("%s exceeds %d bytes", baseName(f.Name), policy.MaxSize)
		}
	}

	types := make([]sniffed, len(files))
	for i, f := range files {
		st, err := sniff(f)
		if err != nil {
			log.CtxWarn(ctx, "sniff upload failed: name=%s, error=%v", f.Name, err)
			return nil, errcode.ErrInvalidParam.WithDetail("cannot read %s", baseName(f.Name))
		}
		if !policy.allows(st.kind) {
			return nil, errcode.ErrFileTypeNotAllowed.WithDetail("%s (%s)", baseName(f.Name), st.mime)
		}
		types[i] = st
	}

	day := time.Now().UTC().Format("2006/01/02/")
	keys := make([]string, len(files))
	descriptors := make([]entity.AttachmentDescriptor, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, f := range files {
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			defer func() { _ = rc.Close() }()

			key := day + uuid.NewString() + types[i].ext
			url, err := s.store.Put(gctx, key, rc, f.Size, types[i].mime)
			if err != nil {
				return err
			}
			keys[i] = key
			descriptors[i] = entity.AttachmentDescriptor{
				URL:  url,
				Name: baseName(f.Name),
				Size: f.Size,
				Kind: types[i].kind,
				Mime: types[i].mime,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.CtxError(ctx, "upload batch failed: policy=%s, files=%d, error=%v", policy.Name, len(files), err)
		s.discard(ctx, keys)
		return nil, errcode.ErrUnavailable
	}

	if err := s.recordPending(ctx, keys, types, files); err != nil {
		log.CtxError(ctx, "record pending uploads failed: error=%v", err)
		s.discard(ctx, keys)
		return nil, errcode.ErrUnavailable
	}

	log.CtxInfo(ctx, "upload batch stored: policy=%s, files=%d", policy.Name, len(files))
	return descriptors, nil
}

func (s *AttachmentService) recordPending(ctx context.Context, keys []string, types []sniffed, files []FileInput) error {
	now := time.Now().Unix()
	values := make(map[string]interface{}, len(keys))
	for i, key := range keys {
		raw, err := json.Marshal(pendingUpload{Mime: types[i].mime, Size: files[i].Size, CreatedAt: now})
		if err != nil {
			return err
		}
		values[key] = string(raw)
	}
	return s.rdb.HSet(ctx, constant.RedisKeyPendingUploads(), values).Err()
}

// discard deletes already stored objects of a failed batch. It keeps going
// after the request context is cancelled.
func (s *AttachmentService) discard(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, objstore.ErrObjectNotFound) {
			log.CtxWarn(ctx, "discard upload failed, left for sweep: key=%s, error=%v", key, err)
			_ = s.rdb.HSet(ctx, constant.RedisKeyPendingUploads(), key, `{"created_at":0}`).Err()
		}
	}
}

// Claim removes message-referenced objects from the pending ledger. URLs
// that were not produced by this store are ignored.
func (s *AttachmentService) Claim(ctx context.Context, attachments []entity.AttachmentDescriptor) error {
	keys := make([]string, 0, len(attachments))
	for _, a := range attachments {
		if key, ok := s.store.KeyFromURL(a.URL); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.HDel(ctx, constant.RedisKeyPendingUploads(), keys...).Err()
}

// Sweep deletes pending objects older than olderThan and returns how many
// were removed
func (s *AttachmentService) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	ledgerKey := constant.RedisKeyPendingUploads()
	all, err := s.rdb.HGetAll(ctx, ledgerKey).Result()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan).Unix()
	count := 0
	for key, val := range all {
		var meta pendingUpload
		if err := json.Unmarshal([]byte(val), &meta); err != nil {
			log.CtxWarn(ctx, "invalid pending upload entry: key=%s", key)
			continue
		}
		if meta.CreatedAt > cutoff {
			continue
		}

		if s.refs != nil {
			used, err := s.refs.ReferencesObject(ctx, key)
			if err != nil {
				log.CtxError(ctx, "check upload references failed: key=%s, error=%v", key, err)
				continue
			}
			if used {
				log.CtxWarn(ctx, "pending upload is referenced, claiming late: key=%s", key)
				if err := s.rdb.HDel(ctx, ledgerKey, key).Err(); err != nil {
					log.CtxError(ctx, "remove pending entry failed: key=%s, error=%v", key, err)
				}
				continue
			}
		}

		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, objstore.ErrObjectNotFound) {
			log.CtxError(ctx, "delete orphan upload failed: key=%s, error=%v", key, err)
			continue
		}
		if err := s.rdb.HDel(ctx, ledgerKey, key).Err(); err != nil {
			log.CtxError(ctx, "remove pending entry failed: key=%s, error=%v", key, err)
			continue
		}
		count++
	}

	if count > 0 {
		log.CtxInfo(ctx, "orphan uploads swept: count=%d", count)
	}
	return count, nil
}

func sniff(f FileInput) (sniffed, error) {
	rc, err := f.Open()
	if err != nil {
		return sniffed{}, err
	}
	defer func() { _ = rc.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return sniffed{}, err
	}

	mtype := mimetype.Detect(head[:n])
	mime := mtype.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	ext := strings.ToLower(path.Ext(baseName(f.Name)))
	if ext == "" {
		ext = mtype.Extension()
	}
	return sniffed{mime: mime, kind: classify(mime, ext), ext: ext}, nil
}

// classify maps a sniffed MIME type to an attachment kind. A generic result
// lets an image or video extension decide; anything else is a document.
func classify(mime, ext string) string {
	switch {
	case strings.HasPrefix(mime, constant.MimePrefixImage):
		return constant.AttachmentKindImage
	case strings.HasPrefix(mime, constant.MimePrefixVideo):
		return constant.AttachmentKindVideo
	case !slices.Contains(genericMimes, mime):
		return constant.AttachmentKindDocument
	case slices.Contains(imageExts, ext):
		return constant.AttachmentKindImage
	case slices.Contains(videoExts, ext):
		return constant.AttachmentKindVideo
	}
	return constant.AttachmentKindDocument
}

func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "file"
	}
	return name
}
