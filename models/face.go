package models

import (
	"encoding/json"
	"time"
)

const MaxFailedVerifications = 3

// FaceEncoding is one stored biometric template. DataHash always describes EncodingData and is never
// recomputed after enrollment.
type FaceEncoding struct {
	ID                      uint64 `gorm:"primaryKey"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
	UserID                  uint64     `gorm:"not null;index:idx_user_active,priority:1"`
	EncodingData            []byte     `gorm:"type:blob;not null"`
	EncodingMeta            string     `gorm:"type:text"`
	DataHash                string     `gorm:"type:varchar(64);not null"`
	IsActive                bool       `gorm:"not null;index:idx_user_active,priority:2"`
	LastUsed                *time.Time `gorm:""`
	FailedVerificationCount int        `gorm:"not null"`
	ConfidenceScore         *float64   `gorm:""`
}

// Metadata is stored as JSON in FaceEncoding.EncodingMeta
type Metadata map[string]interface{}

func (m Metadata) ToJSONString() (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	return string(data), err
}

func (e *FaceEncoding) Metadata() (Metadata, error) {
	result := Metadata{}
	if e.EncodingMeta == "" {
		return result, nil
	}
	err := json.Unmarshal([]byte(e.EncodingMeta), &result)
	return result, err
}
