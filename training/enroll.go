package training

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"faceauth/logger"
	"faceauth/models"
	"faceauth/storage"

	"go.uber.org/zap"
)

const BackupDirPrefix = "backups"

type EncodingSaver interface {
	Save(ctx context.Context, userID uint64, encoding []byte, meta models.Metadata) (uint64, error)
}

// Enroll stores a face encoding for every sample whose label is a known user.
// It stops at the first storage error, samples saved up to that point stay saved.
func Enroll(ctx context.Context, samples []Sample, saver EncodingSaver, known func(label int32) bool) (enrolled int, err error) {
	for _, s := range samples {
		if !known(s.Label) {
			logger.Warn("skipping sample of unknown user", zap.Int32("label", s.Label), zap.String("source", s.Source))
			continue
		}
		meta := models.Metadata{"source": s.Source, "method": "bulk"}
		if _, err = saver.Save(ctx, uint64(s.Label), s.Descriptor.Bytes(), meta); err != nil {
			return enrolled, fmt.Errorf("enrolling %s: %w", s.Source, err)
		}
		enrolled++
	}
	logger.Info("bulk enrollment finished", zap.Int("enrolled", enrolled), zap.Int("samples", len(samples)))
	return enrolled, nil
}

// BackupDir copies every regular file under dir to backups/backup_<timestamp>/ in st
func BackupDir(dir string, st storage.StorageAPI) (prefix string, copied int, err error) {
	prefix = path.Join(BackupDirPrefix, "backup_"+timeNow().Format("20060102_150405"))
	err = filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err = st.Save(path.Join(prefix, filepath.ToSlash(rel)), f); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return prefix, copied, fmt.Errorf("backing up %s: %w", dir, err)
	}
	logger.Info("training data backed up", zap.String("to", prefix), zap.Int("files", copied))
	return prefix, copied, nil
}
