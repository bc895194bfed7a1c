// Package notify delivers trust events to external channels.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
	"github.com/robalyx/guardian/internal/trust"
	"go.uber.org/zap"
)

// BanEmbedColor is the sidebar color of ban notices.
const BanEmbedColor = 0xE74C3C

// Sender delivers embeds through a webhook.
type Sender func(ctx context.Context, embeds []discord.Embed) error

// Webhook posts ban notices to a Discord webhook.
type Webhook struct {
	send   Sender
	close  func(context.Context)
	logger *zap.Logger
}

// NewWebhook creates a notifier for the given Discord webhook URL.
func NewWebhook(url string, logger *zap.Logger) (*Webhook, error) {
	client, err := webhook.NewWithURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}

	send := func(ctx context.Context, embeds []discord.Embed) error {
		_, err := client.CreateEmbeds(embeds, rest.WithCtx(ctx))
		return err
	}

	return &Webhook{
		send:   send,
		close:  client.Close,
		logger: logger.Named("notify_webhook"),
	}, nil
}

// NewWebhookWithSender creates a notifier that delivers through send.
func NewWebhookWithSender(send Sender, logger *zap.Logger) *Webhook {
	return &Webhook{
		send:   send,
		close:  func(context.Context) {},
		logger: logger.Named("notify_webhook"),
	}
}

// NotifyBan posts a ban notice for the user.
func (w *Webhook) NotifyBan(ctx context.Context, record trust.Record, entry trust.AuditEntry) error {
	if err := w.send(ctx, []discord.Embed{BanEmbed(record, entry)}); err != nil {
		return fmt.Errorf("failed to send ban notice: %w", err)
	}

	w.logger.Debug("Sent ban notice", zap.Int64("userID", record.UserID))
	return nil
}

// Close releases the underlying webhook client.
func (w *Webhook) Close(ctx context.Context) {
	w.close(ctx)
}

// BanEmbed builds the embed announcing a ban.
func BanEmbed(record trust.Record, entry trust.AuditEntry) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("User Banned").
		SetDescription("A user reached the ban threshold after repeated violations.").
		AddField("User ID", "`"+strconv.FormatInt(record.UserID, 10)+"`", true).
		AddField("Flag Count", strconv.Itoa(record.FlagCount), true).
		AddField("Banned At", fmt.Sprintf("<t:%d:F>", entry.Timestamp.Unix()), false).
		SetColor(BanEmbedColor).
		SetTimestamp(entry.Timestamp).
		SetFooter("This is an automated message.", "").
		Build()
}

// Noop discards notifications.
type Noop struct{}

// NotifyBan does nothing.
func (Noop) NotifyBan(context.Context, trust.Record, trust.AuditEntry) error {
	return nil
}
