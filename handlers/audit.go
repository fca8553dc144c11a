package handlers

import (
	"net/http"
	"time"

	"faceauth/audit"
	"faceauth/models"

	"github.com/gin-gonic/gin"
)

type AuditInfo struct {
	ID         uint64    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Success    bool      `json:"success"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason,omitempty"`
	IPAddress  string    `json:"ip_address"`
}

// AuditList returns the user's own face verification history, newest first
func AuditList(c *gin.Context, user *models.User) {
	rows, err := Faces.AuditTrail(c.Request.Context(), user.ID, limitParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	result := make([]AuditInfo, 0, len(rows))
	for i := range rows {
		info := AuditInfo{
			ID:        rows[i].ID,
			CreatedAt: rows[i].CreatedAt,
			Success:   rows[i].Success,
			IPAddress: rows[i].IPAddress,
		}
		if event, err := audit.ParseVerificationEvent(&rows[i]); err == nil {
			info.Confidence = event.Confidence
			info.Reason = event.Reason
		}
		result = append(result, info)
	}
	c.JSON(http.StatusOK, result)
}
