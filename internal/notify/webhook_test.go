package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/guardian/internal/database/types/enum"
	"github.com/robalyx/guardian/internal/notify"
	"github.com/robalyx/guardian/internal/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBanEmbed(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	embed := notify.BanEmbed(
		trust.Record{UserID: 42, FlagCount: 1, Banned: true},
		trust.AuditEntry{UserID: 42, Activity: enum.ActivityTypeBanned, Timestamp: now},
	)

	assert.Equal(t, "User Banned", embed.Title)
	assert.Equal(t, notify.BanEmbedColor, embed.Color)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "`42`", embed.Fields[0].Value)
	assert.Equal(t, "1", embed.Fields[1].Value)
	assert.Contains(t, embed.Fields[2].Value, "1740830400")
}

func TestWebhookNotifyBan(t *testing.T) {
	t.Parallel()

	var sent []discord.Embed
	w := notify.NewWebhookWithSender(func(_ context.Context, embeds []discord.Embed) error {
		sent = append(sent, embeds...)
		return nil
	}, zap.NewNop())

	err := w.NotifyBan(t.Context(), trust.Record{UserID: 7, Banned: true}, trust.AuditEntry{UserID: 7})
	require.NoError(t, err)
	assert.Len(t, sent, 1)
}

func TestWebhookNotifyBanError(t *testing.T) {
	t.Parallel()

	errDown := errors.New("webhook down")
	w := notify.NewWebhookWithSender(func(context.Context, []discord.Embed) error {
		return errDown
	}, zap.NewNop())

	err := w.NotifyBan(t.Context(), trust.Record{UserID: 7}, trust.AuditEntry{})
	require.ErrorIs(t, err, errDown)
}

func TestNoop(t *testing.T) {
	t.Parallel()
	assert.NoError(t, notify.Noop{}.NotifyBan(t.Context(), trust.Record{}, trust.AuditEntry{}))
}
