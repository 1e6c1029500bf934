package sessioncapture

import (
	"net/url"
	"strings"
)

// MatchRule reports whether a cookie name identifies the provider's session token.
type MatchRule func(name string) bool

// AllowList matches cookie names exactly against names, or by prefix against prefixes.
// Session cookie names are undocumented and change, so they belong in configuration.
func AllowList(names, prefixes []string) MatchRule {
	exact := make(map[string]struct{}, len(names))
	for _, n := range names {
		exact[n] = struct{}{}
	}
	prefixes = append([]string(nil), prefixes...)

	return func(name string) bool {
		if _, ok := exact[name]; ok {
			return true
		}
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	}
}

// domainMatches reports whether a cookie domain belongs to sessionDomain,
// ignoring the leading dot of domain cookies.
func domainMatches(cookieDomain, sessionDomain string) bool {
	c := strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	s := strings.ToLower(strings.TrimPrefix(sessionDomain, "."))
	if c == "" || s == "" {
		return false
	}
	return c == s || strings.HasSuffix(c, "."+s)
}

// DomainMatches is the exported form of the cookie domain check, for hosts
// that filter cookie listings.
func DomainMatches(cookieDomain, sessionDomain string) bool {
	return domainMatches(cookieDomain, sessionDomain)
}

// defaultLoginMarkers are the path fragments of pages that are still part of signing in.
var defaultLoginMarkers = []string{"/login", "/logout", "/auth", "/oauth"}

// Target describes where and how a provider's session cookie is captured.
type Target struct {
	ProviderID    string
	LoginURL      string
	SessionDomain string
	Match         MatchRule

	// LandingPrefix is the authenticated root; navigations under it trigger a
	// delayed cookie check. Defaults to the scheme and host of LoginURL.
	LandingPrefix string
	// LoginMarkers exclude sign-in pages under LandingPrefix.
	LoginMarkers []string
}

// NewTarget builds a Target with the default landing detection.
func NewTarget(loginURL, sessionDomain string, match MatchRule, providerID string) Target {
	return Target{
		ProviderID:    providerID,
		LoginURL:      loginURL,
		SessionDomain: sessionDomain,
		Match:         match,
	}
}

// landingPrefix returns the configured prefix or the login URL origin.
func (t Target) landingPrefix() string {
	if t.LandingPrefix != "" {
		return t.LandingPrefix
	}
	u, err := url.Parse(t.LoginURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// isLanding reports whether a navigation lands on an authenticated page.
func (t Target) isLanding(rawURL string) bool {
	prefix := t.landingPrefix()
	if prefix == "" || !strings.HasPrefix(rawURL, prefix) {
		return false
	}

	markers := t.LoginMarkers
	if len(markers) == 0 {
		markers = defaultLoginMarkers
	}
	for _, m := range markers {
		if strings.Contains(rawURL, m) {
			return false
		}
	}
	return true
}
