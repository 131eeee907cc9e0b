package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/liyubing19/telegram-bot/internal/domain"
	"github.com/liyubing19/telegram-bot/internal/gate"
)

// Sender is the outbound half of the Telegram API.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Lookups interface {
	HandleLookup(ctx context.Context, userID int64, now time.Time, payload string) (gate.Result, error)
}

type Accounts interface {
	Register(ctx context.Context, r gate.Registration) (gate.RegisterResult, error)
	CheckIn(ctx context.Context, userID int64) (gate.CheckInStatus, int64, error)
	Profile(ctx context.Context, userID int64) (domain.Account, bool, error)
}

type Handler struct {
	api         Sender
	botUsername string
	logger      *slog.Logger

	lookups  Lookups
	accounts Accounts
	members  MembershipChecker
	channel  string

	now func() time.Time
}

type Options struct {
	BotUsername string
	// ChannelLink is shown to users who fail the membership check.
	ChannelLink string
	Members     MembershipChecker
	Logger      *slog.Logger
	Now         func() time.Time
}

func NewHandler(api Sender, lookups Lookups, accounts Accounts, opts Options) *Handler {
	h := &Handler{
		api:         api,
		botUsername: opts.BotUsername,
		logger:      opts.Logger,
		lookups:     lookups,
		accounts:    accounts,
		members:     opts.Members,
		channel:     opts.ChannelLink,
		now:         opts.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.members == nil {
		h.members = AllowAll{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch {
	case msg.IsCommand():
		h.handleCommand(ctx, msg)
	case gate.LooksLikeQuery(text):
		if !h.requireMember(ctx, msg) {
			return
		}
		h.handleLookup(ctx, msg, text)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "share":
		h.handleShare(msg)
	case "sign":
		if h.requireMember(ctx, msg) {
			h.handleSign(ctx, msg)
		}
	case "info":
		if h.requireMember(ctx, msg) {
			h.handleInfo(ctx, msg)
		}
	}
}

// requireMember is the channel-membership precondition for gated commands.
func (h *Handler) requireMember(ctx context.Context, msg *tgbotapi.Message) bool {
	if h.members.IsMember(ctx, msg.From.ID) {
		return true
	}
	text := "Join the channel below to use this bot."
	if h.channel != "" {
		text += "\n" + h.channel
	}
	h.reply(msg.Chat.ID, text, false)
	return false
}

func (h *Handler) reply(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}
	h.send(msg)
}

func (h *Handler) replyTo(msg *tgbotapi.Message, text string) tgbotapi.Message {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	return h.send(out)
}

func (h *Handler) sendDM(telegramID int64, text string) {
	h.send(tgbotapi.NewMessage(telegramID, text))
}

func (h *Handler) edit(chatID int64, messageID int, text string, markdown bool) {
	e := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if markdown {
		e.ParseMode = tgbotapi.ModeMarkdownV2
	}
	h.send(e)
}

func (h *Handler) send(c tgbotapi.Chattable) tgbotapi.Message {
	m, err := h.api.Send(c)
	if err != nil {
		h.logger.Error("telegram send failed", "err", err)
	}
	return m
}
