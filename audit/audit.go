// Package audit is the append-only security audit log
package audit

import (
	"context"
	"encoding/json"
	"time"

	"faceauth/logger"
	"faceauth/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultQueryLimit = 100

var timeNow = time.Now

// Verification describes one face verification attempt
type Verification struct {
	UserID     uint64
	Success    bool
	Confidence float64
	Origin     string // request IP
	Reason     string // empty on a regular match/no-match decision
	RequestID  string // generated when empty
}

// VerificationEvent is the JSON payload stored in SecurityAudit.EventData
type VerificationEvent struct {
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	Timestamp  string  `json:"timestamp"`
	Reason     string  `json:"reason,omitempty"`
}

type Filter struct {
	UserID    uint64
	EventType string
	Limit     int
}

type Logger struct {
	db *gorm.DB
}

func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogVerification appends exactly one audit row
func (l *Logger) LogVerification(ctx context.Context, v Verification) error {
	if v.RequestID == "" {
		v.RequestID = uuid.NewString()
	}
	now := timeNow()
	payload, err := json.Marshal(VerificationEvent{
		Confidence: v.Confidence,
		Success:    v.Success,
		Timestamp:  now.UTC().Format(time.RFC3339),
		Reason:     v.Reason,
	})
	if err != nil {
		return err
	}
	record := models.SecurityAudit{
		CreatedAt: now,
		UserID:    v.UserID,
		EventType: models.EventTypeFaceVerification,
		EventData: string(payload),
		Success:   v.Success,
		IPAddress: v.Origin,
		RequestID: v.RequestID,
	}
	if err = l.db.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Error("writing security audit failed",
			zap.Uint64("user_id", v.UserID),
			zap.Bool("success", v.Success),
			zap.Float64("confidence", v.Confidence),
			zap.Error(err))
		return err
	}
	return nil
}

// Query returns matching rows, newest first
func (l *Logger) Query(ctx context.Context, f Filter) (result []models.SecurityAudit, err error) {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	tx := l.db.WithContext(ctx).Where("user_id = ?", f.UserID)
	if f.EventType != "" {
		tx = tx.Where("event_type = ?", f.EventType)
	}
	err = tx.Order("created_at DESC, id DESC").Limit(f.Limit).Find(&result).Error
	return
}

func ParseVerificationEvent(a *models.SecurityAudit) (e VerificationEvent, err error) {
	err = json.Unmarshal([]byte(a.EventData), &e)
	return
}
