// Package push hands user notifications (verification codes, login alerts) to an external relay
// that delivers them by email.
package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"faceauth/logger"

	"go.uber.org/zap"
)

const (
	NotificationTypeVerificationCode = "verification_code"
	NotificationTypeLogin            = "login"
)

var httpClient = http.Client{Timeout: 10 * time.Second}

type Notification struct {
	Type       string            `json:"type"`
	Recipients []string          `json:"recipients" binding:"required"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data"`
}

func (notification *Notification) SendTo(server string, recipients []string) error {
	notification.Recipients = recipients
	return notification.Send(server)
}

func (notification *Notification) Send(server string) error {
	buf := bytes.Buffer{}
	if err := json.NewEncoder(&buf).Encode(*notification); err != nil {
		return err
	}
	resp, err := httpClient.Post(server+"/send", "application/json", &buf)
	if err != nil {
		logger.Error("sending notification", zap.String("type", notification.Type), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf.Reset()
		_, _ = io.Copy(&buf, io.LimitReader(resp.Body, 1024))
		logger.Error("notification rejected", zap.String("type", notification.Type), zap.Int("status", resp.StatusCode), zap.String("body", buf.String()))
		return fmt.Errorf("status: %d", resp.StatusCode)
	}
	return nil
}

// Sender delivers notifications through the relay at Server
type Sender struct {
	Server string
}

func (s Sender) SendCode(email, code string) error {
	n := Notification{
		Type:  NotificationTypeVerificationCode,
		Title: "Email Verification Code",
		Body:  "Your verification code is: " + code + "\nThis code will expire in 10 minutes.",
		Data:  map[string]string{"code": code},
	}
	return n.SendTo(s.Server, []string{email})
}

func (s Sender) NotifyLogin(email, method, origin string, at time.Time) error {
	n := Notification{
		Type:  NotificationTypeLogin,
		Title: "New sign-in to your account",
		Body:  fmt.Sprintf("New %s sign-in from %s at %s", method, origin, at.UTC().Format(time.RFC1123)),
		Data:  map[string]string{"method": method, "origin": origin},
	}
	return n.SendTo(s.Server, []string{email})
}
