package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/liyubing19/telegram-bot/internal/gate"
)

const searchingText = "🔍 Searching..."

func (h *Handler) handleLookup(ctx context.Context, msg *tgbotapi.Message, text string) {
	interim := h.replyTo(msg, searchingText)

	res, err := h.lookups.HandleLookup(ctx, msg.From.ID, h.now(), text)
	switch {
	case err != nil:
		h.logger.Error("lookup request failed", "user_id", msg.From.ID, "status", res.Status, "err", err)
	case res.Status.Err() != nil:
		h.logger.Debug("lookup rejected", "user_id", msg.From.ID, "reason", res.Status.Err())
	}

	out, markdown := lookupReply(res)
	if interim.MessageID == 0 {
		// the interim message never went out; answer with a fresh one
		if markdown {
			h.reply(msg.Chat.ID, out, true)
		} else {
			h.replyTo(msg, out)
		}
		return
	}
	h.edit(msg.Chat.ID, interim.MessageID, out, markdown)
}

// lookupReply renders a lookup result; markdown reports MarkdownV2 text.
func lookupReply(res gate.Result) (text string, markdown bool) {
	switch res.Status {
	case gate.StatusRateLimited:
		return "Too many requests, please try again later.", false
	case gate.StatusUnregistered:
		return "Send /start first to register.", false
	case gate.StatusInsufficientBalance:
		return "Not enough points!", false
	case gate.StatusInvalidInput:
		return "Please send a valid 11-digit phone number or 18-digit ID number.", false
	case gate.StatusFound:
		return formatRecords(res.Records), true
	case gate.StatusNotFound:
		return "No data found.", false
	default:
		return "❌ Search failed, please try again later.", false
	}
}
