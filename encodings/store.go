// Package encodings owns the persisted face encodings of every user
package encodings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"faceauth/faces"
	"faceauth/logger"
	"faceauth/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPersistence   = errors.New("face encoding persistence failed")
	ErrNoEncodings   = errors.New("no active face encodings")
	ErrEmptyEncoding = errors.New("face encoding is empty")

	timeNow = time.Now
)

// The active flag is evaluated before the counter so the statement behaves the same on engines that
// apply SET assignments left to right (MySQL) and on those that read the old row (SQLite, Postgres).
const recordFailureSQL = `UPDATE face_encodings SET
	is_active = CASE WHEN failed_verification_count + 1 >= ? THEN ? ELSE is_active END,
	failed_verification_count = failed_verification_count + 1,
	updated_at = ?
WHERE id = ? AND is_active = ?`

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save stores one encoding together with its integrity hash. The insert is a single transaction,
// nothing is left behind on failure.
func (s *Store) Save(ctx context.Context, userID uint64, encoding []byte, meta models.Metadata) (uint64, error) {
	if len(encoding) == 0 {
		return 0, ErrEmptyEncoding
	}
	now := timeNow()
	digest := faces.Hash(encoding)
	full := models.Metadata{}
	for k, v := range meta {
		full[k] = v
	}
	full["enrolled_at"] = now.UTC().Format(time.RFC3339)
	full["user_id"] = userID
	full["data_hash"] = digest
	metaJSON, err := full.ToJSONString()
	if err != nil {
		return 0, fmt.Errorf("%w: metadata: %v", ErrPersistence, err)
	}
	record := models.FaceEncoding{
		UserID:       userID,
		EncodingData: append([]byte{}, encoding...),
		EncodingMeta: metaJSON,
		DataHash:     digest,
		IsActive:     true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
	if err != nil {
		logger.Error("saving face encoding failed", zap.Uint64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	logger.Info("face encoding saved", zap.Uint64("user_id", userID), zap.Uint64("encoding_id", record.ID))
	return record.ID, nil
}

// ActiveFor returns the encodings still eligible for verification, empty if none
func (s *Store) ActiveFor(ctx context.Context, userID uint64) (result []models.FaceEncoding, err error) {
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Find(&result).Error
	return
}

func (s *Store) CountActive(ctx context.Context, userID uint64) (count int64, err error) {
	err = s.db.WithContext(ctx).Model(&models.FaceEncoding{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return
}

// RecordMatch marks a confident match
func (s *Store) RecordMatch(ctx context.Context, id uint64, confidence float64) error {
	now := timeNow()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.FaceEncoding{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(map[string]interface{}{
				"last_used":        now,
				"confidence_score": confidence,
				"updated_at":       now,
			}).Error
	})
}

// RecordFailure counts a sub-threshold comparison and retires the encoding once it reaches
// models.MaxFailedVerifications. Increment and retirement are one statement, so no concurrent reader
// can see the encoding active after its last allowed failure. Retired encodings are left untouched.
func (s *Store) RecordFailure(ctx context.Context, id uint64) (retired bool, err error) {
	now := timeNow()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(recordFailureSQL, models.MaxFailedVerifications, false, now, id, true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		current := models.FaceEncoding{}
		if err := tx.Select("id", "is_active", "failed_verification_count").First(&current, id).Error; err != nil {
			return err
		}
		retired = !current.IsActive
		return nil
	})
	if err != nil {
		return false, err
	}
	if retired {
		logger.Warn("face encoding deactivated due to multiple failed verifications", zap.Uint64("encoding_id", id))
	}
	return retired, nil
}

// PurgeInactive deletes retired encodings not touched since olderThan. Only the retention job calls it.
func (s *Store) PurgeInactive(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_active = ? AND updated_at < ?", false, olderThan).
		Delete(&models.FaceEncoding{})
	return res.RowsAffected, res.Error
}
