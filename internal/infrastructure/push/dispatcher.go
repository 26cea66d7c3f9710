// Package push hands notifications to external channels. Delivery is best
// effort: the stored notification is the source of truth.
package push

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"neighborly/internal/domain/entity"
	"neighborly/pkg/logger"
)

const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelNone     = "none"
)

// Dispatcher picks channels from the recipient's preference and sends to them
// concurrently. Either sender may be nil when not configured.
type Dispatcher struct {
	email    EmailSender
	telegram TelegramSender
}

func NewDispatcher(email EmailSender, telegram TelegramSender) *Dispatcher {
	return &Dispatcher{email: email, telegram: telegram}
}

func (d *Dispatcher) Push(ctx context.Context, recipient *entity.User, n *entity.Notification) error {
	g, _ := errgroup.WithContext(ctx)
	sent := 0

	if d.wants(recipient, ChannelEmail) {
		sent++
		g.Go(func() error {
			if err := d.email.Send(recipient.Email, n.Title, n.Message); err != nil {
				return fmt.Errorf("email: %w", err)
			}
			return nil
		})
	}
	if d.wants(recipient, ChannelTelegram) {
		sent++
		g.Go(func() error {
			if err := d.telegram.Send(recipient.TelegramChatID, n.Title+"\n"+n.Message); err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			return nil
		})
	}

	if sent == 0 {
		logger.Debug("Push: no channel for %s (preference %q)", recipient.ID, recipient.PushChannel)
		return nil
	}
	return g.Wait()
}

// wants reports whether a channel is configured, reachable for the
// recipient, and allowed by their preference. An empty preference means
// every reachable channel.
func (d *Dispatcher) wants(recipient *entity.User, channel string) bool {
	pref := recipient.PushChannel
	if pref == ChannelNone || (pref != "" && pref != channel) {
		return false
	}
	switch channel {
	case ChannelEmail:
		return d.email != nil && recipient.Email != ""
	case ChannelTelegram:
		return d.telegram != nil && recipient.TelegramChatID != 0
	}
	return false
}
