package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"faceauth/logger"
	"faceauth/models"
	"faceauth/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ArchiveDir = "archives/security_audits"

type archivedAudit struct {
	ID        uint64          `json:"id"`
	UserID    uint64          `json:"user_id"`
	EventType string          `json:"event_type"`
	EventData json.RawMessage `json:"event_data"`
	Timestamp string          `json:"timestamp"`
	IPAddress string          `json:"ip_address"`
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id"`
}

// Archiver moves audit rows past the retention window out of the database
type Archiver struct {
	db      *gorm.DB
	storage storage.StorageAPI
}

func NewArchiver(db *gorm.DB, storage storage.StorageAPI) *Archiver {
	return &Archiver{db: db, storage: storage}
}

// Archive exports rows created before olderThan into one JSON file and deletes them. A failed export
// rolls the delete back.
func (a *Archiver) Archive(ctx context.Context, olderThan time.Time) (archived int, path string, err error) {
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.SecurityAudit
		if err := tx.Where("created_at < ?", olderThan).Order("id ASC").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		export := make([]archivedAudit, 0, len(rows))
		for _, r := range rows {
			data := json.RawMessage(r.EventData)
			if !json.Valid(data) {
				quoted, _ := json.Marshal(r.EventData)
				data = quoted
			}
			export = append(export, archivedAudit{
				ID:        r.ID,
				UserID:    r.UserID,
				EventType: r.EventType,
				EventData: data,
				Timestamp: r.CreatedAt.UTC().Format(time.RFC3339),
				IPAddress: r.IPAddress,
				Success:   r.Success,
				RequestID: r.RequestID,
			})
		}
		// Range delete keeps the statement at two bind variables whatever the backlog
		maxID := rows[len(rows)-1].ID
		deleted := tx.Where("created_at < ? AND id <= ?", olderThan, maxID).Delete(&models.SecurityAudit{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected != int64(len(rows)) {
			return fmt.Errorf("audit archive: exported %d rows, deleted %d", len(rows), deleted.RowsAffected)
		}
		payload, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return err
		}
		path = fmt.Sprintf("%s/audit_archive_%s.json", ArchiveDir, timeNow().UTC().Format("20060102_150405"))
		if _, err = a.storage.Save(path, bytes.NewReader(payload)); err != nil {
			return fmt.Errorf("storing audit archive: %w", err)
		}
		archived = len(rows)
		return nil
	})
	if err != nil {
		logger.Error("archiving security audits failed", zap.Error(err))
		return 0, "", err
	}
	if archived > 0 {
		logger.Info("security audits archived", zap.Int("count", archived), zap.String("path", path))
	}
	return archived, path, nil
}
