package app

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/BIGWOO/clawx-auth/internal/deviceflow"
	"github.com/BIGWOO/clawx-auth/internal/sessioncapture"
)

// Built-in provider ids.
const (
	ProviderAnthropic = "anthropic"
	ProviderCopilot   = "copilot"
)

// copilotClientID is the public client id of the GitHub Copilot editor integrations.
const copilotClientID = "Iv1.b507a08c87ecfe98"

// defaultProviders returns the built-in provider definitions in config form,
// so files and environment can override single keys.
func defaultProviders() map[string]any {
	return map[string]any{
		ProviderAnthropic: map[string]any{
			"name":            "Claude",
			"kind":            string(ProviderKindSession),
			"login_url":       "https://claude.ai/login",
			"session_domain":  "claude.ai",
			"landing_prefix":  "https://claude.ai/",
			"login_markers":   []string{"/login"},
			"cookie_names":    []string{"sessionKey", "__Secure-next-auth.session-token"},
			"cookie_prefixes": []string{"clp_"},
			"settle_delay":    sessioncapture.DefaultSettleDelay.String(),
		},
		ProviderCopilot: map[string]any{
			"name":            "GitHub Copilot",
			"kind":            string(ProviderKindDevice),
			"device_auth_url": github.Endpoint.DeviceAuthURL,
			"token_url":       github.Endpoint.TokenURL,
			"client_id":       copilotClientID,
			"scope":           "read:user",
		},
	}
}

// Provider is a resolved provider definition ready to drive a login.
type Provider struct {
	ID   string
	Name string
	Kind ProviderKind

	// Set for session providers.
	Target      sessioncapture.Target
	SettleDelay time.Duration

	// Set for device providers.
	Device deviceflow.Provider
}

// Provider resolves the provider with the given id.
func (c *Config) Provider(id string) (Provider, error) {
	pc, ok := c.Providers[id]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider %q", id)
	}
	return pc.resolve(id), nil
}

// ProviderList returns all configured providers ordered by id.
func (c *Config) ProviderList() []Provider {
	ids := make([]string, 0, len(c.Providers))
	for id := range c.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := make([]Provider, 0, len(ids))
	for _, id := range ids {
		list = append(list, c.Providers[id].resolve(id))
	}
	return list
}

func (pc ProviderConfig) resolve(id string) Provider {
	p := Provider{
		ID:   id,
		Name: pc.Name,
		Kind: pc.Kind,
	}
	if p.Name == "" {
		p.Name = id
	}

	switch pc.Kind {
	case ProviderKindSession:
		p.Target = sessioncapture.Target{
			ProviderID:    id,
			LoginURL:      pc.LoginURL,
			SessionDomain: pc.SessionDomain,
			Match:         sessioncapture.AllowList(pc.CookieNames, pc.CookiePrefixes),
			LandingPrefix: pc.LandingPrefix,
			LoginMarkers:  pc.LoginMarkers,
		}
		p.SettleDelay = pc.SettleDelay
		if p.SettleDelay == 0 {
			p.SettleDelay = sessioncapture.DefaultSettleDelay
		}
	case ProviderKindDevice:
		p.Device = deviceflow.Provider{
			ID: id,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: pc.DeviceAuthURL,
				TokenURL:      pc.TokenURL,
			},
			ClientID: pc.ClientID,
			Scope:    pc.Scope,
		}
	}

	return p
}
