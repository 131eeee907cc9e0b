package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// ThrottledSender keeps outbound messages under Telegram's flood limits.
// Once ctx is done, queued sends fail instead of waiting for a token.
type ThrottledSender struct {
	ctx  context.Context
	next Sender
	lim  *rate.Limiter
}

// NewThrottledSender allows perSecond messages with a burst of the same size.
func NewThrottledSender(ctx context.Context, next Sender, perSecond float64) *ThrottledSender {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &ThrottledSender{ctx: ctx, next: next, lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (s *ThrottledSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := s.lim.Wait(s.ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return s.next.Send(c)
}
