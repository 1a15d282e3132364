package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// 送信部分（テストで差し替える）
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPで送るメーラー
type SMTPMailer struct {
	dialer sender
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (s *SMTPMailer) SendSignupConfirmation(_ context.Context, to string) error {
	m := s.newMessage(to, "Confirmation")
	m.SetBody("text/plain", "Successfully signed up!")
	return s.send(m)
}

func (s *SMTPMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m := s.newMessage(to, "Password reset")
	m.SetBody("text/html", resetBody(link))
	return s.send(m)
}

func (s *SMTPMailer) newMessage(to, subject string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	return m
}

func (s *SMTPMailer) send(m *gomail.Message) error {
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func resetBody(link string) string {
	return fmt.Sprintf(`<p>You requested a password reset</p>
<p>Click this <a href="%s">link</a> to set a new password.</p>`, link)
}

// SMTP未設定の開発環境用。送らずにログに出す。
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (l *LogMailer) SendSignupConfirmation(_ context.Context, to string) error {
	l.log.Info("mail skipped", zap.String("kind", "signup"), zap.String("to", to))
	return nil
}

func (l *LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	l.log.Info("mail skipped", zap.String("kind", "password_reset"), zap.String("to", to), zap.String("link", link))
	return nil
}
