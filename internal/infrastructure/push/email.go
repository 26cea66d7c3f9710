package push

import (
	"gopkg.in/mail.v2"
)

type SMTPClient struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
}

func NewSMTPClient(smtpHost string, smtpPort int, username, password, from string) *SMTPClient {
	return &SMTPClient{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
		from:     from,
	}
}

func (c *SMTPClient) Send(to, subject, body string) error {
	message := mail.NewMessage()

	message.SetHeader("From", c.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)

	message.SetBody("text/plain", body)

	dialer := mail.NewDialer(c.smtpHost, c.smtpPort, c.username, c.password)

	return dialer.DialAndSend(message)
}
