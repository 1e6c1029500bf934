package guide

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksLikeBotToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{ExampleBotToken, true},
		{"7123456789:AAF-abcdefghijklmnopqrstuvwxyz_0123", true},
		{"", false},
		{"110201543", false},
		{"abc:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw", false},
		{"110201543:short", false},
		{" 110201543:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeBotToken(tt.token))
		})
	}
}

func TestRenderTelegram(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTelegram(&buf))

	out := buf.String()
	assert.Len(t, TelegramSteps, 5)
	assert.Contains(t, out, "1. Open @BotFather")
	assert.Contains(t, out, "2. Send the /newbot command.")
	assert.Contains(t, out, "5. Copy the token")
	assert.Contains(t, out, BotFatherURL)
	assert.Contains(t, out, "Example: "+ExampleBotToken)
}
