package job

import (
	"context"
	"time"

	"github.com/mbeoliero/kit/log"
)

// Sweeper deletes uploads that were never attached to a message
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

// AttachmentSweepJob runs one orphan upload sweep per tick
type AttachmentSweepJob struct {
	sweeper Sweeper
	ttl     time.Duration
}

// NewAttachmentSweepJob creates a sweep job for uploads pending longer than ttl
func NewAttachmentSweepJob(sweeper Sweeper, ttl time.Duration) *AttachmentSweepJob {
	return &AttachmentSweepJob{sweeper: sweeper, ttl: ttl}
}

// Run implements cron.Job
func (j *AttachmentSweepJob) Run() {
	ctx := context.Background()
	log.CtxInfo(ctx, "start attachment sweep job: ttl=%s", j.ttl)

	count, err := j.sweeper.Sweep(ctx, j.ttl)
	if err != nil {
		log.CtxError(ctx, "attachment sweep job failed: %v", err)
		return
	}
	log.CtxInfo(ctx, "attachment sweep job finished: swept=%d", count)
}
