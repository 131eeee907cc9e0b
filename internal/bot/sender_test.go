package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledSenderPaces(t *testing.T) {
	inner := &fakeSender{}
	s := NewThrottledSender(context.Background(), inner, 20)

	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := s.Send(tgbotapi.NewMessage(1, "x"))
		require.NoError(t, err)
	}
	// 20 go out in the initial burst, the other 5 wait 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.Len(t, inner.all(), 25)
}

func TestThrottledSenderStopsOnShutdown(t *testing.T) {
	inner := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewThrottledSender(ctx, inner, 0.1)

	_, err := s.Send(tgbotapi.NewMessage(1, "first"))
	require.NoError(t, err)

	cancel()
	start := time.Now()
	_, err = s.Send(tgbotapi.NewMessage(1, "second"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, inner.all(), 1)
}
