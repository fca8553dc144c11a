package handlers

import (
	"errors"
	"net/http"

	"faceauth/auth"
	"faceauth/encodings"
	"faceauth/faces"
	"faceauth/logger"
	"faceauth/models"
	"faceauth/training"
	"faceauth/utils"
	"faceauth/verification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxListLimit = 1000

type FaceVerifyRequest struct {
	UserID uint64 `form:"user_id" binding:"required"`
}

type FaceVerifyResponse struct {
	Error      string  `json:"error"`
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
}

type IdentityInfo struct {
	UserID int32  `json:"user_id"`
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FaceSave enrolls a new face for the logged in user
func FaceSave(c *gin.Context, user *models.User) {
	img, err := readImage(c)
	if err != nil {
		imageError(c, err)
		return
	}
	source := c.PostForm("source")
	if source == "" {
		source = "upload"
	}
	id, err := Faces.SaveFaceData(c.Request.Context(), user.ID, img, models.Metadata{"source": source})
	switch {
	case errors.Is(err, faces.ErrInvalidImage), errors.Is(err, faces.ErrNoFaceDetected):
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	case errors.Is(err, encodings.ErrPersistence):
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	case err != nil:
		logger.Error("face enrollment failed", zap.Uint64("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"face processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": "", "id": id})
}

// FaceVerify is face login: a match starts a session for the claimed user.
// A failed verification is a normal 200 answer with match=false.
func FaceVerify(c *gin.Context) {
	req := FaceVerifyRequest{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	img, err := readImage(c)
	if err != nil {
		imageError(c, err)
		return
	}
	result := Faces.Verify(c.Request.Context(), verification.Request{
		Image:  img,
		UserID: req.UserID,
		Origin: c.ClientIP(),
	})
	if result.Match {
		if err = auth.LoadSession(c).LoginUser(req.UserID); err != nil {
			c.JSON(http.StatusInternalServerError, Response{"session error"})
			return
		}
		if user, err := models.UserByID(req.UserID); err == nil {
			notifyLogin(&user, "face", c.ClientIP())
		}
	}
	c.JSON(http.StatusOK, FaceVerifyResponse{Match: result.Match, Confidence: result.Confidence})
}

func FaceIdentify(c *gin.Context, user *models.User) {
	img, err := readImage(c)
	if err != nil {
		imageError(c, err)
		return
	}
	found, err := Identifier.Identify(img)
	switch {
	case errors.Is(err, training.ErrModelNotLoaded):
		c.JSON(http.StatusServiceUnavailable, Response{err.Error()})
		return
	case errors.Is(err, faces.ErrInvalidImage), errors.Is(err, faces.ErrNoFaceDetected):
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	case err != nil:
		logger.Error("identification failed", zap.Uint64("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{"face processing failed"})
		return
	}
	result := make([]IdentityInfo, 0, len(found))
	for _, f := range found {
		result = append(result, IdentityInfo{
			UserID: f.Label,
			Name:   f.Name,
			X:      f.Box.X,
			Y:      f.Box.Y,
			Width:  f.Box.Width,
			Height: f.Box.Height,
		})
	}
	c.JSON(http.StatusOK, result)
}

// limitParam is 0 (the default page size) when missing or invalid
func limitParam(c *gin.Context) int {
	limit := utils.StringToUInt64(c.Query("limit"))
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return int(limit)
}
