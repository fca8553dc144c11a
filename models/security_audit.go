package models

import "time"

const EventTypeFaceVerification = "face_verification"

// SecurityAudit rows are append-only
type SecurityAudit struct {
	ID        uint64    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`
	UserID    uint64    `gorm:"index:idx_user_event,priority:1"`
	EventType string    `gorm:"type:varchar(50);not null;index:idx_user_event,priority:2"`
	EventData string    `gorm:"type:text"` // JSON payload
	Success   bool      `gorm:"not null"`
	IPAddress string    `gorm:"type:varchar(45)"` // IPv6 compatible
	RequestID string    `gorm:"type:varchar(36)"`
}
