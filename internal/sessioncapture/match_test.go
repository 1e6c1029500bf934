package sessioncapture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowList(t *testing.T) {
	rule := AllowList([]string{"sessionKey", "__Secure-next-auth.session-token"}, []string{"clp_", ""})

	tests := []struct {
		name string
		want bool
	}{
		{"sessionKey", true},
		{"__Secure-next-auth.session-token", true},
		{"clp_session", true},
		{"clp_", true},
		{"sessionKey2", false},
		{"_ga", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule(tt.name))
		})
	}
}

func TestDomainMatches(t *testing.T) {
	tests := []struct {
		cookie, session string
		want            bool
	}{
		{"claude.ai", "claude.ai", true},
		{".claude.ai", "claude.ai", true},
		{"api.claude.ai", "claude.ai", true},
		{"Claude.AI", "claude.ai", true},
		{"notclaude.ai", "claude.ai", false},
		{"claude.ai.evil.com", "claude.ai", false},
		{"", "claude.ai", false},
		{"claude.ai", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.cookie+"~"+tt.session, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainMatches(tt.cookie, tt.session))
		})
	}
}

func TestTarget_IsLanding(t *testing.T) {
	target := NewTarget("https://claude.ai/login", "claude.ai", AllowList(nil, nil), "anthropic")

	assert.True(t, target.isLanding("https://claude.ai/new"))
	assert.True(t, target.isLanding("https://claude.ai/"))
	assert.False(t, target.isLanding("https://claude.ai/login"))
	assert.False(t, target.isLanding("https://claude.ai/login?from=logout"))
	assert.False(t, target.isLanding("https://claude.ai/oauth/callback"))
	assert.False(t, target.isLanding("https://accounts.google.com/"))

	target.LandingPrefix = "https://claude.ai/chat"
	assert.True(t, target.isLanding("https://claude.ai/chat/123"))
	assert.False(t, target.isLanding("https://claude.ai/new"))
}
