package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MembershipChecker decides whether a user may use gated commands.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID int64) bool
}

// AllowAll admits everyone; used when no channel is required.
type AllowAll struct{}

func (AllowAll) IsMember(context.Context, int64) bool { return true }

// ChatMemberGetter is the part of *tgbotapi.BotAPI the channel check needs.
type ChatMemberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// ChannelMembership requires the user to be in a Telegram channel. Lookup
// errors count as "not a member".
type ChannelMembership struct {
	api       ChatMemberGetter
	channelID int64
	logger    *slog.Logger
}

func NewChannelMembership(api ChatMemberGetter, channelID int64, logger *slog.Logger) *ChannelMembership {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelMembership{api: api, channelID: channelID, logger: logger}
}

func (c *ChannelMembership) IsMember(_ context.Context, userID int64) bool {
	m, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: c.channelID,
			UserID: userID,
		},
	})
	if err != nil {
		c.logger.Warn("channel membership check failed", "user_id", userID, "channel_id", c.channelID, "err", err)
		return false
	}
	return !m.HasLeft() && !m.WasKicked()
}
