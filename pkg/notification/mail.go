package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

type MailConfig struct {
	Driver   string `env:"MAIL_DRIVER"` // resend | smtp | log
	APIKey   string `env:"RESEND_API_KEY"`
	Host     string `env:"MAIL_HOST"`
	Username string `env:"MAIL_USERNAME"`
	Password string `env:"MAIL_PASSWORD"`
	Port     int64  `env:"MAIL_PORT"`
	From     string `env:"EMAIL_FROM"`
}

// Mailer 发送一封 HTML 邮件
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NewMailer 按驱动构造发件器
func NewMailer(cfg MailConfig, log *zap.Logger) (Mailer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Driver {
	case "resend":
		if cfg.APIKey == "" || cfg.From == "" {
			return nil, fmt.Errorf("resend mailer needs RESEND_API_KEY and EMAIL_FROM")
		}
		return NewResendMailer(resend.NewClient(cfg.APIKey), cfg.From), nil
	case "smtp":
		if cfg.Host == "" || cfg.From == "" {
			return nil, fmt.Errorf("smtp mailer needs MAIL_HOST and EMAIL_FROM")
		}
		return &SMTPMailer{cfg: cfg}, nil
	case "", "log":
		return &LogMailer{log: log}, nil
	}
	return nil, fmt.Errorf("unsupported mail driver %q", cfg.Driver)
}

type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(client *resend.Client, from string) *ResendMailer {
	return &ResendMailer{client: client, from: from}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

type SMTPMailer struct {
	cfg MailConfig
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, subject, html)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// LogMailer 开发环境用，只打日志
type LogMailer struct {
	log *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, html string) error {
	m.log.Info("mail", zap.String("to", to), zap.String("subject", subject), zap.Int("bytes", len(html)))
	return nil
}
