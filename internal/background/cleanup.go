package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper drops expired entries from an in-memory store and reports how many
type Sweeper interface {
	Sweep() int
}

// ExpiredTokenStore deletes persisted tokens that expired before cutoff
type ExpiredTokenStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// SweepRecorder counts swept entries per store
type SweepRecorder interface {
	AddSwept(store string, count int)
}

// CleanupManager periodically evicts expired rate-limit windows, tracker
// entries and CSRF tokens, and deletes expired password reset tokens
type CleanupManager struct {
	sweepers map[string]Sweeper
	tokens   ExpiredTokenStore
	recorder SweepRecorder
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		sweepers: make(map[string]Sweeper),
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Register adds an in-memory store under a name used in logs and metrics
func (cm *CleanupManager) Register(name string, s Sweeper) *CleanupManager {
	cm.sweepers[name] = s
	return cm
}

// WithTokenStore enables deletion of expired reset tokens
func (cm *CleanupManager) WithTokenStore(store ExpiredTokenStore) *CleanupManager {
	cm.tokens = store
	return cm
}

// WithRecorder reports swept counts to metrics
func (cm *CleanupManager) WithRecorder(r SweepRecorder) *CleanupManager {
	cm.recorder = r
	return cm
}

// Start runs a sweep immediately and then on every tick until ctx is done or
// Stop is called
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single sweep of every registered store
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	for name, s := range cm.sweepers {
		cm.record(name, s.Sweep())
	}

	if cm.tokens == nil {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.tokens.DeleteExpired(cleanupCtx, cm.now())
	if err != nil {
		cm.logger.Error("failed to delete expired reset tokens", slog.Any("error", err))
		return
	}
	cm.record("password_reset_tokens", int(rowsDeleted))
}

func (cm *CleanupManager) record(store string, count int) {
	if count <= 0 {
		return
	}
	cm.logger.Debug("swept expired entries", slog.String("store", store), slog.Int("count", count))
	if cm.recorder != nil {
		cm.recorder.AddSwept(store, count)
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
