package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OTPPurger deletes OTP rows that expired before cutoff
type OTPPurger interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically removes stale OTPs from the credential store.
// An OTP is stale once it has been expired for longer than the retention
// period; used OTPs always expire within their TTL so they are covered too.
type CleanupManager struct {
	otps      OTPPurger
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewCleanupManager(otps OTPPurger, logger *slog.Logger, interval, retention time.Duration) *CleanupManager {
	return &CleanupManager{
		otps:      otps,
		logger:    logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then once per interval until Stop is
// called or ctx is done. It blocks.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.now().Add(-cm.retention)
	rowsDeleted, err := cm.otps.DeleteExpiredBefore(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to clean up expired otps", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("expired otp cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopCh)
	})
}
