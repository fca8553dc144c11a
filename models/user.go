package models

import (
	"errors"
	"faceauth/db"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID                  uint64 `gorm:"primaryKey"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Name                string     `gorm:"type:varchar(50);not null;index:uniq_name,unique"`
	Email               string     `gorm:"type:varchar(120);not null;index:uniq_email,unique"`
	PasswordHash        string     `gorm:"type:varchar(128)"`
	IsActive            bool       `gorm:"not null"`
	IsEmailVerified     bool       `gorm:"not null"`
	LastLogin           *time.Time `gorm:""`
	FailedLoginAttempts int        `gorm:"not null"`
	LockedUntil         *time.Time `gorm:""`
	OtpSecret           string     `gorm:"type:varchar(64)"`
	OtpValidUntil       *time.Time `gorm:""`
}

const (
	MaxLoginAttempts = 5
	LockDuration     = 30 * time.Minute
	OtpValidity      = 10 * time.Minute

	otpIssuer = "faceauth"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("account is not active")
	ErrUserLocked         = errors.New("account is locked")
	ErrInvalidOTP         = errors.New("invalid or expired verification code")

	// Swapped in tests
	timeNow = time.Now

	otpOpts = totp.ValidateOpts{
		Period:    uint(OtpValidity / time.Second),
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
)

// UserCreate registers a new, inactive account
func UserCreate(name, email, plainTextPassword string) (u User, err error) {
	u.Name = name
	u.Email = email
	if err = u.SetPassword(plainTextPassword); err != nil {
		return u, err
	}
	return u, db.Instance.Create(&u).Error
}

func UserByEmail(email string) (u User, err error) {
	err = db.Instance.First(&u, "email = ?", email).Error
	return
}

func UserByID(id uint64) (u User, err error) {
	err = db.Instance.First(&u, id).Error
	return
}

// UserList returns all users ordered by ID, which is also the label order used for training
func UserList() (users []User, err error) {
	err = db.Instance.Order("id ASC").Find(&users).Error
	return
}

// UserLogin checks the password and records the attempt. Failed attempts against existing accounts
// count towards the lock.
func UserLogin(email, plainTextPassword string) (u User, err error) {
	u, err = UserByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !u.IsActive {
		return User{}, ErrUserInactive
	}
	now := timeNow()
	if u.IsLocked(now) {
		return User{}, ErrUserLocked
	}
	success := u.CheckPassword(plainTextPassword)
	u.RecordLoginAttempt(success, now)
	if err = u.Save(); err != nil {
		return User{}, err
	}
	if !success {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (u *User) Save() error {
	return db.Instance.Save(u).Error
}

func (u *User) SetPassword(plainTextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(plainTextPassword string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plainTextPassword)) == nil
}

// SetOTP generates a fresh secret and returns the 6 digit code to be delivered to the user
func (u *User) SetOTP() (string, error) {
	account := u.Email
	if account == "" {
		account = u.Name
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpIssuer,
		AccountName: account,
		Period:      otpOpts.Period,
		Digits:      otpOpts.Digits,
		Algorithm:   otpOpts.Algorithm,
	})
	if err != nil {
		return "", err
	}
	now := timeNow()
	code, err := totp.GenerateCodeCustom(key.Secret(), now, otpOpts)
	if err != nil {
		return "", err
	}
	validUntil := now.Add(OtpValidity)
	u.OtpSecret = key.Secret()
	u.OtpValidUntil = &validUntil
	return code, nil
}

// VerifyOTP is single use: a successful check clears the secret
func (u *User) VerifyOTP(code string) bool {
	if u.OtpSecret == "" || u.OtpValidUntil == nil {
		return false
	}
	now := timeNow()
	if now.After(*u.OtpValidUntil) {
		return false
	}
	valid, err := totp.ValidateCustom(code, u.OtpSecret, now, otpOpts)
	if err != nil || !valid {
		return false
	}
	u.clearOTP()
	return true
}

// Activate is called after the email address was confirmed
func (u *User) Activate() {
	u.IsActive = true
	u.IsEmailVerified = true
	u.clearOTP()
}

func (u *User) clearOTP() {
	u.OtpSecret = ""
	u.OtpValidUntil = nil
}

func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

func (u *User) RecordLoginAttempt(success bool, now time.Time) {
	if success {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLogin = &now
		return
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= MaxLoginAttempts {
		lockedUntil := now.Add(LockDuration)
		u.LockedUntil = &lockedUntil
	}
}
