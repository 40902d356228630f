package jobs

import (
	"context"

	"zephyrm-backend/internal/logger"
)

// PurgeSettledJobs deletes fired and cancelled reminder jobs past retention
func (jr *JobRunner) PurgeSettledJobs() {
	jr.runWithRecovery("PurgeSettledJobs", func(ctx context.Context) error {
		cutoff := jr.now().Add(-jr.config.SettledJobRetention())
		n, err := jr.repos.Jobs.PurgeSettled(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("Purged settled reminder jobs", "count", n, "before", cutoff)
		return nil
	})
}

// PurgeReadNotifications deletes read notifications past retention
func (jr *JobRunner) PurgeReadNotifications() {
	jr.runWithRecovery("PurgeReadNotifications", func(ctx context.Context) error {
		cutoff := jr.now().Add(-jr.config.ReadNotificationRetention())
		n, err := jr.repos.Notifications.PurgeRead(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("Purged read notifications", "count", n, "before", cutoff)
		return nil
	})
}

// SweepReminders wakes the reminder loop so jobs written by other
// instances are noticed without waiting for the idle timeout.
func (jr *JobRunner) SweepReminders() {
	jr.runWithRecovery("SweepReminders", func(ctx context.Context) error {
		if jr.waker == nil {
			logger.Debug("No reminder loop in this process, skipping sweep")
			return nil
		}
		jr.waker.Wake()
		return nil
	})
}
