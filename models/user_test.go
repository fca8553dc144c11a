package models

import (
	"faceauth/db/dbtest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock(t *testing.T, now time.Time) *time.Time {
	t.Helper()
	current := now
	previous := timeNow
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = previous })
	return &current
}

func TestUser_RecordLoginAttempt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	u := User{}
	for i := 1; i < MaxLoginAttempts; i++ {
		u.RecordLoginAttempt(false, now)
		assert.Equal(t, i, u.FailedLoginAttempts)
		assert.False(t, u.IsLocked(now))
	}
	u.RecordLoginAttempt(false, now)
	require.True(t, u.IsLocked(now))
	assert.Equal(t, now.Add(LockDuration), *u.LockedUntil)
	assert.False(t, u.IsLocked(now.Add(LockDuration+time.Second)))

	u.RecordLoginAttempt(true, now)
	assert.Equal(t, 0, u.FailedLoginAttempts)
	assert.Nil(t, u.LockedUntil)
	assert.Equal(t, now, *u.LastLogin)
}

func TestUser_OTP(t *testing.T) {
	clock := withClock(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	tests := []struct {
		name    string
		advance time.Duration
		wrong   bool
		want    bool
	}{
		{"valid code", 0, false, true},
		{"valid near expiry", OtpValidity - time.Second, false, true},
		{"expired", OtpValidity + time.Second, false, false},
		{"wrong code", 0, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := *clock
			defer func() { *clock = start }()

			u := User{Email: "jerry@example.com"}
			code, err := u.SetOTP()
			require.NoError(t, err)
			require.Len(t, code, 6)

			*clock = start.Add(tt.advance)
			if tt.wrong {
				code = wrongCode(code)
			}
			assert.Equal(t, tt.want, u.VerifyOTP(code))
			if tt.want {
				assert.Empty(t, u.OtpSecret, "code must be single use")
				assert.False(t, u.VerifyOTP(code))
			}
		})
	}
}

func wrongCode(code string) string {
	b := []byte(code)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}

func TestUser_OTPCodeMatchesSecret(t *testing.T) {
	now := *withClock(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	u := User{Email: "inno@example.com"}
	code, err := u.SetOTP()
	require.NoError(t, err)
	expected, err := totp.GenerateCodeCustom(u.OtpSecret, now, otpOpts)
	require.NoError(t, err)
	assert.Equal(t, expected, code)
}

func TestUser_Activate(t *testing.T) {
	u := User{Email: "a@example.com"}
	_, err := u.SetOTP()
	require.NoError(t, err)
	u.Activate()
	assert.True(t, u.IsActive)
	assert.True(t, u.IsEmailVerified)
	assert.Empty(t, u.OtpSecret)
	assert.Nil(t, u.OtpValidUntil)
}

func TestUserLogin(t *testing.T) {
	require.NoError(t, Migrate(dbtest.NewGlobal(t)))
	clock := withClock(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	u, err := UserCreate("jerry", "jerry@example.com", "secure_password123")
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	_, err = UserLogin("jerry@example.com", "secure_password123")
	assert.ErrorIs(t, err, ErrUserInactive)

	u.Activate()
	require.NoError(t, u.Save())

	_, err = UserLogin("nobody@example.com", "secure_password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logged, err := UserLogin("jerry@example.com", "secure_password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
	require.NotNil(t, logged.LastLogin)

	for i := 0; i < MaxLoginAttempts; i++ {
		_, err = UserLogin("jerry@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = UserLogin("jerry@example.com", "secure_password123")
	assert.ErrorIs(t, err, ErrUserLocked)

	*clock = clock.Add(LockDuration + time.Minute)
	_, err = UserLogin("jerry@example.com", "secure_password123")
	assert.NoError(t, err)

	stored, err := UserByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestUserCreate_UniqueEmail(t *testing.T) {
	require.NoError(t, Migrate(dbtest.NewGlobal(t)))
	_, err := UserCreate("jerry", "jerry@example.com", "pw")
	require.NoError(t, err)
	_, err = UserCreate("jerry2", "jerry@example.com", "pw")
	assert.Error(t, err)
}

func TestMetadata_ToJSONString(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
		want string
	}{
		{"nil", nil, "{}"},
		{"values", Metadata{"source": "camera"}, `{"source":"camera"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.meta.ToJSONString()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
	e := FaceEncoding{EncodingMeta: `{"source":"camera","quality":"high"}`}
	meta, err := e.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "high", meta["quality"])
}
