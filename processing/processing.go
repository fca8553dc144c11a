// Package processing runs the periodic retention tasks: archiving old security audits and purging
// retired face encodings.
package processing

import (
	"context"
	"time"

	"faceauth/config"
	"faceauth/db"
	"faceauth/logger"

	"go.uber.org/zap"
)

type processingTask interface {
	getName() string
	shouldHandle() bool
	process(ctx context.Context, now time.Time) (processed int64, status int, err error)
}

var (
	tasks = map[string]processingTask{}

	// timeNow is swapped in tests
	timeNow = time.Now
)

func registerTask(t processingTask) {
	tasks[t.getName()] = t
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// Init registers the retention tasks. Each one is skipped when its retention is not positive.
func Init(archiver AuditArchiver, purger EncodingPurger) error {
	if err := db.Instance.AutoMigrate(&ProcessingTask{}); err != nil {
		return err
	}
	tasks = map[string]processingTask{}
	registerTask(&auditArchive{archiver: archiver, retention: days(config.AUDIT_RETENTION_DAYS)})
	registerTask(&encodingPurge{purger: purger, retention: days(config.ENCODING_RETENTION_DAYS)})
	return nil
}

// runPending runs every task that is due and returns the status of the ones that ran
func runPending(ctx context.Context, interval time.Duration) map[string]int {
	result := map[string]int{}
	for name, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		now := timeNow()
		current := ProcessingTask{Name: name}
		if err := db.Instance.Where(&current).Limit(1).Find(&current).Error; err != nil {
			logger.Error("loading task state", zap.String("task", name), zap.Error(err))
			continue
		}
		if !current.due(now, interval) {
			continue
		}
		var (
			processed int64
			status    = Skipped
			err       error
		)
		if task.shouldHandle() {
			start := time.Now()
			processed, status, err = task.process(ctx, now)
			logger.Info("task finished",
				zap.String("task", name),
				zap.Int("status", status),
				zap.Int64("processed", processed),
				zap.Int64("ms", time.Since(start).Milliseconds()),
				zap.Error(err))
		}
		current.updateWith(now, status, processed, err)
		if err = db.Instance.Save(&current).Error; err != nil {
			logger.Error("saving task state", zap.String("task", name), zap.Error(err))
		}
		result[name] = status
	}
	return result
}

// StartCleanup blocks until ctx is cancelled
func StartCleanup(ctx context.Context) {
	interval := time.Duration(config.CLEANUP_INTERVAL_MIN) * time.Minute
	if interval <= 0 {
		logger.Info("cleanup disabled")
		return
	}
	// Tasks are checked more often than they run, LastRun decides
	ticker := time.NewTicker(min(interval, time.Minute))
	defer ticker.Stop()
	for {
		runPending(ctx, interval)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
