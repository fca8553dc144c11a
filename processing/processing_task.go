package processing

import (
	"time"
)

const (
	Skipped       = 0
	Done          = 2
	Failed        = 3
	FailedStorage = 4
)

// ProcessingTask remembers the last run of each background task, so restarts don't re-run them early
type ProcessingTask struct {
	Name      string `gorm:"primaryKey;type:varchar(50)"`
	LastRun   time.Time
	Status    int
	Processed int64
	Error     string `gorm:"type:varchar(1024)"`
}

func (pt *ProcessingTask) due(now time.Time, interval time.Duration) bool {
	return pt.LastRun.IsZero() || !now.Before(pt.LastRun.Add(interval))
}

func (pt *ProcessingTask) updateWith(now time.Time, status int, processed int64, err error) {
	pt.LastRun = now
	pt.Status = status
	pt.Processed = processed
	pt.Error = ""
	if err != nil {
		pt.Error = err.Error()
		if len(pt.Error) > 1024 {
			pt.Error = pt.Error[:1024]
		}
	}
}
