package handlers

import (
	"errors"
	"net/http"
	"strings"

	"faceauth/auth"
	"faceauth/logger"
	"faceauth/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UserCreateRequest struct {
	Name     string `form:"name" binding:"required,max=50"`
	Email    string `form:"email" binding:"required,email,max=120"`
	Password string `form:"password" binding:"required,min=8"`
}
type UserLoginRequest struct {
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}
type UserVerifyRequest struct {
	Email string `form:"email" binding:"required"`
	Code  string `form:"code" binding:"required"`
}
type UserEmailRequest struct {
	Email string `form:"email" binding:"required"`
}
type UserInfo struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	FaceCount int64  `json:"face_count"`
}

func sendCode(user *models.User) error {
	code, err := user.SetOTP()
	if err != nil {
		return err
	}
	if err = user.Save(); err != nil {
		return err
	}
	if err = Sender.SendCode(user.Email, code); err != nil {
		// The account exists either way, a new code can be requested
		logger.Error("failed to send verification code", zap.String("email", user.Email), zap.Error(err))
	}
	return nil
}

func UserCreate(c *gin.Context) {
	postReq := UserCreateRequest{}
	err := c.ShouldBindWith(&postReq, binding.Form)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	postReq.Email = strings.ToLower(strings.TrimSpace(postReq.Email))
	if _, err = models.UserByEmail(postReq.Email); err == nil {
		c.JSON(http.StatusConflict, Response{"email already registered"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	user, err := models.UserCreate(postReq.Name, postReq.Email, postReq.Password)
	if err != nil {
		logger.Info("registration failed", zap.String("email", postReq.Email), zap.Error(err))
		c.JSON(http.StatusConflict, Response{"name or email already registered"})
		return
	}
	if err = sendCode(&user); err != nil {
		c.JSON(http.StatusInternalServerError, DBError2Response)
		return
	}
	if Identifier != nil && Identifier.Labels != nil {
		Identifier.Labels.Put(user)
	}
	logger.Info("new user created", zap.Uint64("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{"error": "", "id": user.ID})
}

// UserResendCode never reveals whether the address is registered
func UserResendCode(c *gin.Context) {
	postReq := UserEmailRequest{}
	if err := c.ShouldBindWith(&postReq, binding.Form); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	user, err := models.UserByEmail(strings.ToLower(strings.TrimSpace(postReq.Email)))
	if err == nil && !user.IsEmailVerified {
		if err = sendCode(&user); err != nil {
			c.JSON(http.StatusInternalServerError, DBError1Response)
			return
		}
	}
	c.JSON(http.StatusOK, OKResponse)
}

// UserVerifyEmail activates the account and logs the user in
func UserVerifyEmail(c *gin.Context) {
	postReq := UserVerifyRequest{}
	if err := c.ShouldBindWith(&postReq, binding.Form); err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	user, err := models.UserByEmail(strings.ToLower(strings.TrimSpace(postReq.Email)))
	if err != nil || !user.VerifyOTP(postReq.Code) {
		c.JSON(http.StatusUnauthorized, Response{models.ErrInvalidOTP.Error()})
		return
	}
	user.Activate()
	if err = user.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	if err = auth.LoadSession(c).LoginUser(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, Response{"session error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"error": "", "name": user.Name})
}

func UserLogin(c *gin.Context) {
	postReq := UserLoginRequest{}
	err := c.ShouldBindWith(&postReq, binding.Form)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{err.Error()})
		return
	}
	user, err := models.UserLogin(strings.ToLower(strings.TrimSpace(postReq.Email)), postReq.Password)
	switch {
	case errors.Is(err, models.ErrUserLocked):
		c.JSON(http.StatusLocked, Response{err.Error()})
		return
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrUserInactive):
		c.JSON(http.StatusUnauthorized, Response{err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	if err = auth.LoadSession(c).LoginUser(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, Response{"session error"})
		return
	}
	notifyLogin(&user, "password", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"error": "", "name": user.Name})
}

func UserLogout(c *gin.Context) {
	auth.LoadSession(c).LogoutUser()
	c.JSON(http.StatusOK, OKResponse)
}

func UserGetInfo(c *gin.Context, user *models.User) {
	count, err := Faces.FaceCount(c.Request.Context(), user.ID)
	if err != nil {
		logger.Error("counting face encodings", zap.Uint64("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, DBError1Response)
		return
	}
	c.JSON(http.StatusOK, UserInfo{ID: user.ID, Name: user.Name, Email: user.Email, FaceCount: count})
}
