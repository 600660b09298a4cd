package service

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/models"
)

// DefaultSyncInterval is used when Start gets a non-positive interval.
const DefaultSyncInterval = 5 * time.Minute

type syncJob struct {
	engine   SyncEngine
	sessions VaultSessionStore
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a syncJob that calls engine.Sync for every eligible
// vault on a ticker. The job is idle until Start is called.
func NewSyncJob(engine SyncEngine, sessions VaultSessionStore, log *logger.Logger) SyncJob {
	return &syncJob{engine: engine, sessions: sessions, logger: log}
}

// Start implements SyncJob. It stops any previously running job, then
// launches a background goroutine that syncs every interval. The goroutine
// exits when ctx is cancelled or Stop is called.
func (j *syncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				_ = j.RunOnce(jobCtx)
			}
		}
	}()
}

// Stop implements SyncJob. It cancels the background goroutine's context and
// blocks until the goroutine has fully exited. Safe to call when the job is not
// running (no-op in that case).
func (j *syncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

// RunOnce implements SyncJob. Vaults are synced one after another; a
// failure of one does not stop the others.
func (j *syncJob) RunOnce(ctx context.Context) map[string]models.SyncOutcome {
	log := j.logger.GetChildLogger()

	vaults, err := j.sessions.ListVaults(ctx)
	if err != nil {
		log.Err(err).Str("func", "syncJob.RunOnce").Msg("failed to list vaults")
		return nil
	}

	outcomes := make(map[string]models.SyncOutcome)
	for _, v := range vaults {
		if ctx.Err() != nil {
			break
		}
		if !v.Connected || !v.SyncEnabled || !j.sessions.IsUnlocked(v.ID) {
			continue
		}
		outcomes[v.ID] = j.engine.Sync(ctx, v.ID)
	}
	return outcomes
}
