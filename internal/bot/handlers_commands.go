package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/liyubing19/telegram-bot/internal/domain"
	"github.com/liyubing19/telegram-bot/internal/gate"
)

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	reg := gate.Registration{
		UserID:    from.ID,
		Name:      from.FirstName,
		Username:  from.UserName,
		InviterID: parseInviteCode(msg.CommandArguments()),
	}

	res, err := h.accounts.Register(ctx, reg)
	if err != nil {
		h.logger.Error("registration failed", "user_id", from.ID, "err", err)
		h.reply(msg.Chat.ID, "❌ Registration failed, please try again later.", false)
		return
	}

	if !res.Created {
		h.reply(msg.Chat.ID, fmt.Sprintf("Hi %s, welcome back!", from.FirstName), false)
		return
	}

	switch res.Invite {
	case gate.InviteGranted:
		h.reply(msg.Chat.ID, fmt.Sprintf("Hi %s, you are registered! Thanks to %d for the invite.", from.FirstName, reg.InviterID), false)
		h.sendDM(reg.InviterID, fmt.Sprintf("🎉 You invited %d and earned %d points.\nYou have invited %d people so far.",
			from.ID, res.Decision.Bonus, res.Decision.TotalInvites))
	case gate.InviteSuspended:
		h.reply(msg.Chat.ID, fmt.Sprintf("Hi %s, you are registered!", from.FirstName), false)
		h.sendDM(reg.InviterID, "⚠️ Unusual invite activity was detected on your account and has been reported.")
	case gate.InviteUnknownInviter:
		h.reply(msg.Chat.ID, "The inviter does not exist, please check your invite link.", false)
		h.reply(msg.Chat.ID, fmt.Sprintf("Hi %s, you are registered!", from.FirstName), false)
	default:
		h.reply(msg.Chat.ID, fmt.Sprintf("Hi %s!", from.FirstName), false)
	}
}

// parseInviteCode extracts the inviter id from a /start deep-link payload.
func parseInviteCode(args string) int64 {
	code := strings.TrimSpace(args)
	if code == "" {
		return 0
	}
	if i := strings.IndexByte(code, ' '); i >= 0 {
		code = code[:i]
	}
	id, err := strconv.ParseInt(code, 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func (h *Handler) handleShare(msg *tgbotapi.Message) {
	link := InviteLink(h.botUsername, msg.From.ID)
	h.reply(msg.Chat.ID, fmt.Sprintf("Your personal invite link:\n%s\nShare it with friends to invite them!", link), false)
	h.logger.Info("invite link issued", "user_id", msg.From.ID)
}

func InviteLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

func (h *Handler) handleSign(ctx context.Context, msg *tgbotapi.Message) {
	st, balance, err := h.accounts.CheckIn(ctx, msg.From.ID)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		h.reply(msg.Chat.ID, "Send /start first to register.", false)
	case err != nil:
		h.logger.Error("check-in failed", "user_id", msg.From.ID, "err", err)
		h.reply(msg.Chat.ID, "❌ Check-in failed, please try again later.", false)
	case st == gate.CheckInAlreadyDone:
		h.reply(msg.Chat.ID, "You have already checked in today.", false)
	default:
		h.reply(msg.Chat.ID, fmt.Sprintf("✅ Checked in! Balance: %d points.", balance), false)
	}
}

func (h *Handler) handleInfo(ctx context.Context, msg *tgbotapi.Message) {
	acct, _, err := h.accounts.Profile(ctx, msg.From.ID)
	if err != nil {
		h.logger.Error("profile read failed", "user_id", msg.From.ID, "err", err)
		h.reply(msg.Chat.ID, "❌ Could not load your profile, please try again later.", false)
		return
	}
	h.reply(msg.Chat.ID, formatProfile(msg.From.UserName, msg.From.ID, acct), true)
}
