package job

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/robfig/cron/v3"
)

// Manager owns the cron engine. Specs use the six field format with seconds.
type Manager struct {
	engine *cron.Cron
}

// NewManager creates a new Manager
func NewManager() *Manager {
	return &Manager{
		engine: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Register schedules job under spec
func (m *Manager) Register(spec string, job cron.Job) error {
	_, err := m.engine.AddJob(spec, job)
	return err
}

// Start starts the engine in its own goroutine
func (m *Manager) Start() {
	log.CtxInfo(context.Background(), "cron engine started: jobs=%d", len(m.engine.Entries()))
	m.engine.Start()
}

// Stop stops scheduling and waits for running jobs
func (m *Manager) Stop(ctx context.Context) {
	done := m.engine.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.CtxWarn(ctx, "cron engine stop timed out")
		return
	}
	log.CtxInfo(ctx, "cron engine stopped")
}
