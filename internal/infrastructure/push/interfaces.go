package push

//go:generate mockgen -source=interfaces.go -destination=../../mocks/push/mock.go -package=mocks

// EmailSender delivers a plain-text email.
type EmailSender interface {
	Send(to, subject, body string) error
}

// TelegramSender delivers a chat message through a bot.
type TelegramSender interface {
	Send(chatID int64, text string) error
}
