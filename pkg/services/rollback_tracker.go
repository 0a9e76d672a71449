package services

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erdflow/erdflow-engine/pkg/models"
)

// RollbackTracker holds in-progress and recently completed rollback statuses
// for polling. One background pipeline writes each entry; many status
// requests read concurrently, so access is guarded by a single RWMutex.
//
// The tracker is an explicitly lifecycled component: Start launches the
// janitor that evicts terminal entries after the retention window, Stop
// terminates it. Tests can create and tear down independent instances.
type RollbackTracker struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]models.RollbackRecord

	retention       time.Duration
	cleanupInterval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewRollbackTracker creates a tracker. Call Start to begin janitor cleanup.
func NewRollbackTracker(retention, cleanupInterval time.Duration, logger *zap.Logger) *RollbackTracker {
	return &RollbackTracker{
		entries:         make(map[uuid.UUID]models.RollbackRecord),
		retention:       retention,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
		logger:          logger.Named("rollback-tracker"),
	}
}

// Start launches the background janitor goroutine.
func (t *RollbackTracker) Start() {
	go func() {
		ticker := time.NewTicker(t.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				evicted := t.evictExpired(time.Now())
				if evicted > 0 {
					t.logger.Debug("Evicted expired rollback statuses",
						zap.Int("count", evicted))
				}
			}
		}
	}()
}

// Stop terminates the janitor. Safe to call more than once.
func (t *RollbackTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Put stores or replaces a rollback status snapshot. The entry owns its
// Counts map: the caller's map is cloned so the pipeline can keep writing it
// without aliasing a tracked snapshot.
func (t *RollbackTracker) Put(record models.RollbackRecord) {
	record.Counts = maps.Clone(record.Counts)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[record.ID] = record
}

// Get returns the tracked status for a rollback id. The returned Counts map
// is a clone and safe to read or marshal while the rollback is still running.
func (t *RollbackTracker) Get(rollbackID uuid.UUID) (models.RollbackRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.entries[rollbackID]
	record.Counts = maps.Clone(record.Counts)
	return record, ok
}

// ActiveForDeployment returns the id of a non-terminal rollback for the given
// deployment, if one is running.
func (t *RollbackTracker) ActiveForDeployment(deploymentID uuid.UUID) (uuid.UUID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, record := range t.entries {
		if record.DeploymentID == deploymentID && !record.Status.IsTerminal() {
			return id, true
		}
	}
	return uuid.Nil, false
}

// evictExpired removes terminal entries whose completion is older than the
// retention window. Returns the number of evicted entries.
func (t *RollbackTracker) evictExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, record := range t.entries {
		if !record.Status.IsTerminal() || record.CompletedAt == nil {
			continue
		}
		if now.Sub(*record.CompletedAt) > t.retention {
			delete(t.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked entries.
func (t *RollbackTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
