package processing

import (
	"context"
	"time"

	"faceauth/logger"

	"go.uber.org/zap"
)

type AuditArchiver interface {
	Archive(ctx context.Context, olderThan time.Time) (archived int, path string, err error)
}

type EncodingPurger interface {
	PurgeInactive(ctx context.Context, olderThan time.Time) (int64, error)
}

type auditArchive struct {
	archiver  AuditArchiver
	retention time.Duration
}

func (t *auditArchive) getName() string {
	return "audit_archive"
}

func (t *auditArchive) shouldHandle() bool {
	return t.archiver != nil && t.retention > 0
}

func (t *auditArchive) process(ctx context.Context, now time.Time) (int64, int, error) {
	archived, _, err := t.archiver.Archive(ctx, now.Add(-t.retention))
	if err != nil {
		return 0, FailedStorage, err
	}
	return int64(archived), Done, nil
}

type encodingPurge struct {
	purger    EncodingPurger
	retention time.Duration
}

func (t *encodingPurge) getName() string {
	return "encoding_purge"
}

func (t *encodingPurge) shouldHandle() bool {
	return t.purger != nil && t.retention > 0
}

func (t *encodingPurge) process(ctx context.Context, now time.Time) (int64, int, error) {
	purged, err := t.purger.PurgeInactive(ctx, now.Add(-t.retention))
	if err != nil {
		return 0, Failed, err
	}
	if purged > 0 {
		logger.Info("purged retired face encodings", zap.Int64("count", purged))
	}
	return purged, Done, nil
}
