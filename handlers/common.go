package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"faceauth/config"
	"faceauth/logger"
	"faceauth/models"
	"faceauth/training"
	"faceauth/verification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Response struct {
	Error string `json:"error"`
}

const MaxImageUploadSize = 10 << 20

var (
	// Predefined errors
	OKResponse       = Response{}
	DBError1Response = Response{"DB Error 1"}
	DBError2Response = Response{"DB Error 2"}

	errImageTooLarge = errors.New("image too large")
)

var (
	Faces      *verification.Service
	Identifier *training.Identifier
	Sender     CodeSender = LogSender{}
)

// CodeSender delivers one-time verification codes, e.g. by email
type CodeSender interface {
	SendCode(email, code string) error
}

// LoginNotifier is optionally implemented by a CodeSender to alert users of new sign-ins
type LoginNotifier interface {
	NotifyLogin(email, method, origin string, at time.Time) error
}

func notifyLogin(user *models.User, method, origin string) {
	notifier, ok := Sender.(LoginNotifier)
	if !ok {
		return
	}
	go func(id uint64, email string) {
		if err := notifier.NotifyLogin(email, method, origin, time.Now()); err != nil {
			logger.Warn("login notification failed", zap.Uint64("user_id", id), zap.Error(err))
		}
	}(user.ID, user.Email)
}

// LogSender only reveals codes in debug mode, it is meant for local development
type LogSender struct{}

func (LogSender) SendCode(email, code string) error {
	if !config.DEBUG_MODE {
		logger.Warn("no code sender configured, verification code not delivered", zap.String("email", email))
		return nil
	}
	logger.Info("verification code", zap.String("email", email), zap.String("code", code))
	return nil
}

// readImage reads the "image" multipart field
func readImage(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, err
	}
	if header.Size > MaxImageUploadSize {
		return nil, errImageTooLarge
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, MaxImageUploadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageUploadSize {
		return nil, errImageTooLarge
	}
	return data, nil
}

func imageError(c *gin.Context, err error) {
	if errors.Is(err, errImageTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, Response{err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, Response{"image required"})
}
