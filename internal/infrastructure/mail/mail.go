package mail

import (
	"context"
	"errors"
	"io"

	"cardstock/internal/config"

	"gopkg.in/gomail.v2"
)

var ErrSMTPNotConfigured = errors.New("SMTP 未配置")

type Attachment struct {
	Name string
	Data []byte
}

type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender 发送邮件；SMTP 参数每次传入，配置可能在运行时被修改
type Sender interface {
	Send(ctx context.Context, cfg config.SMTPConfig, msg *Message) error
}

type GomailSender struct{}

func NewGomailSender() *GomailSender {
	return &GomailSender{}
}

func (s *GomailSender) Send(ctx context.Context, cfg config.SMTPConfig, msg *Message) error {
	if cfg.Host == "" {
		return ErrSMTPNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := Build(cfg, msg)
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return d.DialAndSend(m)
}

// Build 组装 gomail 消息，发件人为空时使用用户名
func Build(cfg config.SMTPConfig, msg *Message) *gomail.Message {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}
	return m
}
