package chromium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BIGWOO/clawx-auth/internal/sessioncapture"
)

const eventBuffer = 128

// Session is one page target of a browser launched for a single capture attempt.
type Session struct {
	conn      *conn
	sessionID string
	targetID  string

	events chan sessioncapture.Event
	// requestHosts maps request ids to hosts; only touched on the read goroutine.
	requestHosts map[string]string
	now          func() time.Time

	proc       *process
	profileDir string
	closeOnce  sync.Once
	closeErr   error
}

var _ sessioncapture.Session = (*Session)(nil)

func newSession() *Session {
	return &Session{
		events:       make(chan sessioncapture.Event, eventBuffer),
		requestHosts: make(map[string]string),
		now:          time.Now,
	}
}

// attach connects to the browser endpoint, attaches to a page target and
// enables the domains the session listens to.
func (s *Session) attach(ctx context.Context, wsURL string) error {
	c, err := dial(ctx, wsURL, s.handleEvent, s.handleClose)
	if err != nil {
		return err
	}
	s.conn = c

	var targets struct {
		TargetInfos []struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
		} `json:"targetInfos"`
	}
	if err := c.call(ctx, "", "Target.getTargets", nil, &targets); err != nil {
		return err
	}
	for _, t := range targets.TargetInfos {
		if t.Type == "page" {
			s.targetID = t.TargetID
			break
		}
	}
	if s.targetID == "" {
		var created struct {
			TargetID string `json:"targetId"`
		}
		if err := c.call(ctx, "", "Target.createTarget", map[string]any{"url": "about:blank"}, &created); err != nil {
			return err
		}
		s.targetID = created.TargetID
	}

	if err := c.call(ctx, "", "Target.setDiscoverTargets", map[string]any{"discover": true}, nil); err != nil {
		return err
	}

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.call(ctx, "", "Target.attachToTarget", map[string]any{
		"targetId": s.targetID,
		"flatten":  true,
	}, &attached); err != nil {
		return err
	}
	s.sessionID = attached.SessionID

	for _, method := range []string{"Network.enable", "Page.enable"} {
		if err := c.call(ctx, s.sessionID, method, nil, nil); err != nil {
			return err
		}
	}

	return nil
}

// LoadURL navigates the page to rawURL.
func (s *Session) LoadURL(ctx context.Context, rawURL string) error {
	var result struct {
		ErrorText string `json:"errorText"`
	}
	if err := s.conn.call(ctx, s.sessionID, "Page.navigate", map[string]any{"url": rawURL}, &result); err != nil {
		return err
	}
	if result.ErrorText != "" {
		return errors.New(result.ErrorText)
	}
	return nil
}

// Events returns the session's event stream, closed when the browser goes away.
func (s *Session) Events() <-chan sessioncapture.Event {
	return s.events
}

// Cookies lists the cookies of the session's profile that belong to domain.
func (s *Session) Cookies(ctx context.Context, domain string) ([]sessioncapture.Cookie, error) {
	var result struct {
		Cookies []struct {
			Name   string `json:"name"`
			Value  string `json:"value"`
			Domain string `json:"domain"`
		} `json:"cookies"`
	}
	if err := s.conn.call(ctx, s.sessionID, "Network.getAllCookies", nil, &result); err != nil {
		return nil, err
	}

	var cookies []sessioncapture.Cookie
	for _, c := range result.Cookies {
		if !sessioncapture.DomainMatches(c.Domain, domain) {
			continue
		}
		cookies = append(cookies, sessioncapture.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return cookies, nil
}

// Close closes the browser, stops its process and removes the profile.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if s.conn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = s.conn.call(ctx, "", "Browser.close", nil, nil)
			cancel()
			if err := s.conn.close(); err != nil && !websocketClosedNormally(err) {
				slog.Debug("closing devtools connection", "error", err)
			}
		}

		if s.proc != nil {
			if err := s.proc.stop(5 * time.Second); err != nil {
				errs = append(errs, err)
			}
		}

		if s.profileDir != "" {
			if err := os.RemoveAll(s.profileDir); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove browser profile: %w", err))
			}
		}

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// handleClose runs once when the devtools connection ends, however it ended.
func (s *Session) handleClose(err error) {
	if err != nil && !websocketClosedNormally(err) {
		slog.Debug("devtools connection lost", "error", err)
	}
	close(s.events)
}

// handleEvent translates protocol events into session events.
func (s *Session) handleEvent(method, sessionID string, params json.RawMessage) {
	switch method {
	case "Network.requestWillBeSent":
		if sessionID != s.sessionID {
			return
		}
		var p struct {
			RequestID string `json:"requestId"`
			Request   struct {
				URL string `json:"url"`
			} `json:"request"`
		}
		if json.Unmarshal(params, &p) != nil {
			return
		}
		if u, err := url.Parse(p.Request.URL); err == nil {
			s.requestHosts[p.RequestID] = u.Hostname()
		}

	case "Network.responseReceivedExtraInfo":
		if sessionID != s.sessionID {
			return
		}
		var p struct {
			RequestID string            `json:"requestId"`
			Headers   map[string]string `json:"headers"`
		}
		if json.Unmarshal(params, &p) != nil {
			return
		}
		host := s.requestHosts[p.RequestID]
		delete(s.requestHosts, p.RequestID)
		for _, c := range cookiesFromHeaders(p.Headers, host, s.now()) {
			s.emit(sessioncapture.Event{Kind: sessioncapture.CookieChanged, Cookie: c})
		}

	case "Page.frameNavigated":
		if sessionID != s.sessionID {
			return
		}
		var p struct {
			Frame struct {
				ParentID string `json:"parentId"`
				URL      string `json:"url"`
			} `json:"frame"`
		}
		if json.Unmarshal(params, &p) != nil || p.Frame.ParentID != "" {
			return
		}
		s.emit(sessioncapture.Event{Kind: sessioncapture.Navigated, URL: p.Frame.URL})

	case "Target.targetDestroyed", "Target.detachedFromTarget":
		var p struct {
			TargetID  string `json:"targetId"`
			SessionID string `json:"sessionId"`
		}
		if json.Unmarshal(params, &p) != nil {
			return
		}
		if p.TargetID == s.targetID || (p.SessionID != "" && p.SessionID == s.sessionID) {
			s.emit(sessioncapture.Event{Kind: sessioncapture.Closed})
		}
	}
}

// emit never blocks the read goroutine; a consumer that fell this far behind
// still sees later events and the final close.
func (s *Session) emit(ev sessioncapture.Event) {
	select {
	case s.events <- ev:
	default:
		slog.Debug("dropping browser event", "kind", ev.Kind)
	}
}

// cookiesFromHeaders parses Set-Cookie response headers. Cookies without a
// Domain attribute are host-only and belong to requestHost.
func cookiesFromHeaders(headers map[string]string, requestHost string, now time.Time) []sessioncapture.Cookie {
	var raw string
	for k, v := range headers {
		if strings.EqualFold(k, "Set-Cookie") {
			raw = v
			break
		}
	}
	if raw == "" {
		return nil
	}

	var cookies []sessioncapture.Cookie
	// DevTools joins repeated headers with newlines
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		hc, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}

		domain := strings.TrimPrefix(hc.Domain, ".")
		if domain == "" {
			domain = requestHost
		}

		removed := hc.MaxAge < 0 || (!hc.Expires.IsZero() && !hc.Expires.After(now)) || hc.Value == ""
		cookies = append(cookies, sessioncapture.Cookie{
			Name:    hc.Name,
			Value:   hc.Value,
			Domain:  domain,
			Removed: removed,
		})
	}
	return cookies
}
