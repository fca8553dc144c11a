package verification

import (
	"context"
	"errors"
	"time"

	"faceauth/audit"
	"faceauth/faces"
	"faceauth/models"

	"gorm.io/gorm"
)

type EncodingSaver interface {
	Save(ctx context.Context, userID uint64, encoding []byte, meta models.Metadata) (uint64, error)
	CountActive(ctx context.Context, userID uint64) (int64, error)
}

type AuditReader interface {
	Query(ctx context.Context, f audit.Filter) ([]models.SecurityAudit, error)
}

// Service is what the rest of the application talks to
type Service struct {
	Engine  *Engine
	Saver   EncodingSaver
	Audits  AuditReader
	Encoder faces.Encoder
	Timeout time.Duration // 0 means no limit
}

// SaveFaceData enrolls a face image. Errors are returned as is: there is no safe default for an
// enrollment that may or may not have happened.
func (s *Service) SaveFaceData(ctx context.Context, userID uint64, img []byte, meta models.Metadata) (uint64, error) {
	if _, err := faces.ValidateImage(img); err != nil {
		return 0, err
	}
	encoding, err := s.Encoder.Encode(img)
	if err != nil {
		return 0, err
	}
	return s.Saver.Save(ctx, userID, encoding, meta)
}

// FaceCount is the number of encodings still eligible for verification
func (s *Service) FaceCount(ctx context.Context, userID uint64) (int64, error) {
	return s.Saver.CountActive(ctx, userID)
}

func (s *Service) VerifyFace(ctx context.Context, img []byte, claimedUserID uint64, origin string) (bool, float64) {
	r := s.Verify(ctx, Request{Image: img, UserID: claimedUserID, Origin: origin})
	return r.Match, r.Confidence
}

func (s *Service) Verify(ctx context.Context, req Request) Result {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.Engine.Verify(ctx, req)
}

func (s *Service) AuditTrail(ctx context.Context, userID uint64, limit int) ([]models.SecurityAudit, error) {
	return s.Audits.Query(ctx, audit.Filter{UserID: userID, EventType: models.EventTypeFaceVerification, Limit: limit})
}

// ActiveUserLookup treats unknown users as inactive
func ActiveUserLookup(db *gorm.DB) UserLookup {
	return func(ctx context.Context, userID uint64) (bool, error) {
		user := models.User{}
		err := db.WithContext(ctx).Select("id", "is_active").First(&user, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return user.IsActive, nil
	}
}
