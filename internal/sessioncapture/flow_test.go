package sessioncapture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIGWOO/clawx-auth/internal/credential"
)

// fakeSession replays queued events and serves a fixed cookie store.
type fakeSession struct {
	mu         sync.Mutex
	events     chan Event
	cookies    []Cookie
	cookiesErr error
	loadErr    error
	loaded     []string
	listCalls  int
	closeCalls int
}

func newFakeSession(events ...Event) *fakeSession {
	ch := make(chan Event, len(events)+1)
	for _, ev := range events {
		ch <- ev
	}
	return &fakeSession{events: ch}
}

func (s *fakeSession) LoadURL(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = append(s.loaded, url)
	return s.loadErr
}

func (s *fakeSession) Events() <-chan Event { return s.events }

func (s *fakeSession) Cookies(_ context.Context, _ string) ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return s.cookies, s.cookiesErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

// fakeHost hands out prepared sessions and records namespaces.
type fakeHost struct {
	mu         sync.Mutex
	sessions   []*fakeSession
	namespaces []string
	err        error
}

func (h *fakeHost) CreateSession(_ context.Context, namespace string) (Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	h.namespaces = append(h.namespaces, namespace)
	s := h.sessions[0]
	h.sessions = h.sessions[1:]
	return s, nil
}

type savedSecret struct{ Provider, Secret string }

type recordingSink struct {
	mu    sync.Mutex
	err   error
	saves []savedSecret
}

func (s *recordingSink) Save(_ context.Context, providerID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, savedSecret{providerID, secret})
	return nil
}

var (
	_ Host            = (*fakeHost)(nil)
	_ Session         = (*fakeSession)(nil)
	_ credential.Sink = (*recordingSink)(nil)
)

func claudeTarget() Target {
	return Target{
		ProviderID:    "anthropic",
		LoginURL:      "https://claude.ai/login",
		SessionDomain: "claude.ai",
		Match:         AllowList([]string{"sessionKey"}, []string{"clp_"}),
		LandingPrefix: "https://claude.ai/",
		LoginMarkers:  []string{"/login"},
	}
}

func cookieEvent(name, domain, value string) Event {
	return Event{Kind: CookieChanged, Cookie: Cookie{Name: name, Domain: domain, Value: value}}
}

func runFlow(t *testing.T, session *fakeSession, sink *recordingSink) credential.Outcome {
	t.Helper()
	host := &fakeHost{sessions: []*fakeSession{session}}
	flow := NewFlow(host, sink, WithSettleDelay(0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return flow.Run(ctx, claudeTarget())
}

func TestFlow_CapturesMatchingCookie(t *testing.T) {
	session := newFakeSession(cookieEvent("clp_session", "claude.ai", "abc123"))
	session.cookies = []Cookie{{Name: "clp_session", Domain: "claude.ai", Value: "abc123"}}
	sink := &recordingSink{}

	outcome := runFlow(t, session, sink)

	require.True(t, outcome.OK(), outcome.Reason)
	assert.Equal(t, "abc123", outcome.Secret)
	assert.Equal(t, []savedSecret{{"anthropic", "abc123"}}, sink.saves)
	assert.Equal(t, []string{"https://claude.ai/login"}, session.loaded)
	assert.Equal(t, 1, session.closeCalls)
}

func TestFlow_ResolvesOnceUnderRepeatedEvents(t *testing.T) {
	session := newFakeSession(
		cookieEvent("clp_session", ".claude.ai", "abc123"),
		cookieEvent("clp_session", ".claude.ai", "abc123"),
		Event{Kind: Navigated, URL: "https://claude.ai/new"},
		Event{Kind: Closed},
	)
	session.cookies = []Cookie{{Name: "clp_session", Domain: ".claude.ai", Value: "abc123"}}
	sink := &recordingSink{}

	outcome := runFlow(t, session, sink)

	require.True(t, outcome.OK())
	assert.Len(t, sink.saves, 1)
	assert.Equal(t, 1, session.closeCalls)
	assert.Equal(t, 1, session.listCalls)
}

func TestFlow_WindowClosedBeforeCapture(t *testing.T) {
	session := newFakeSession(Event{Kind: Closed})
	sink := &recordingSink{}

	outcome := runFlow(t, session, sink)

	assert.False(t, outcome.OK())
	assert.Equal(t, "window closed by user", outcome.Reason)
	assert.Empty(t, sink.saves)
}

func TestFlow_EventStreamEndedCountsAsClosed(t *testing.T) {
	session := newFakeSession()
	close(session.events)

	outcome := runFlow(t, session, &recordingSink{})

	assert.False(t, outcome.OK())
	assert.Equal(t, "window closed by user", outcome.Reason)
}

func TestFlow_IgnoresIrrelevantCookieEvents(t *testing.T) {
	session := newFakeSession(
		cookieEvent("clp_session", "example.com", "nope"),
		Event{Kind: CookieChanged, Cookie: Cookie{Name: "clp_session", Domain: "claude.ai", Removed: true}},
		Event{Kind: Closed},
	)
	session.cookies = []Cookie{{Name: "clp_session", Domain: "claude.ai", Value: "abc123"}}
	sink := &recordingSink{}

	outcome := runFlow(t, session, sink)

	assert.False(t, outcome.OK())
	assert.Zero(t, session.listCalls)
	assert.Empty(t, sink.saves)
}

func TestFlow_CheckSkipsNonMatchingCookies(t *testing.T) {
	session := newFakeSession(
		cookieEvent("analytics", "claude.ai", "x"),
		Event{Kind: Closed},
	)
	session.cookies = []Cookie{
		{Name: "analytics", Domain: "claude.ai", Value: "x"},
		{Name: "clp_session", Domain: "evil.example", Value: "stolen"},
		{Name: "clp_session", Domain: "claude.ai", Value: ""},
	}
	sink := &recordingSink{}

	outcome := runFlow(t, session, sink)

	assert.False(t, outcome.OK())
	assert.Equal(t, 1, session.listCalls)
	assert.Empty(t, sink.saves)
}

func TestFlow_LandingNavigationTriggersCheck(t *testing.T) {
	session := newFakeSession(Event{Kind: Navigated, URL: "https://claude.ai/new"})
	session.cookies = []Cookie{{Name: "sessionKey", Domain: "claude.ai", Value: "sk-web"}}
	sink := &recordingSink{}

	outcome := runFlow(t, session, sink)

	require.True(t, outcome.OK(), outcome.Reason)
	assert.Equal(t, []savedSecret{{"anthropic", "sk-web"}}, sink.saves)
}

func TestFlow_LoginNavigationDoesNotTriggerCheck(t *testing.T) {
	session := newFakeSession(
		Event{Kind: Navigated, URL: "https://claude.ai/login?returnTo=%2F"},
		Event{Kind: Navigated, URL: "https://accounts.google.com/o/oauth2"},
		Event{Kind: Closed},
	)
	session.cookies = []Cookie{{Name: "sessionKey", Domain: "claude.ai", Value: "sk-web"}}

	outcome := runFlow(t, session, &recordingSink{})

	assert.False(t, outcome.OK())
	assert.Zero(t, session.listCalls)
}

func TestFlow_CookieListingErrorKeepsWaiting(t *testing.T) {
	session := newFakeSession(
		cookieEvent("clp_session", "claude.ai", "abc123"),
		Event{Kind: Closed},
	)
	session.cookiesErr = errors.New("target detached")

	outcome := runFlow(t, session, &recordingSink{})

	assert.Equal(t, "window closed by user", outcome.Reason)
	assert.Equal(t, 1, session.listCalls)
}

func TestFlow_SinkFailure(t *testing.T) {
	session := newFakeSession(cookieEvent("clp_session", "claude.ai", "abc123"))
	session.cookies = []Cookie{{Name: "clp_session", Domain: "claude.ai", Value: "abc123"}}
	sink := &recordingSink{err: errors.New("disk full")}

	outcome := runFlow(t, session, sink)

	assert.False(t, outcome.OK())
	assert.Equal(t, "token save failed: disk full", outcome.Reason)
	assert.Equal(t, 1, session.closeCalls)
}

func TestFlow_LoadFailure(t *testing.T) {
	session := newFakeSession()
	session.loadErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	outcome := runFlow(t, session, &recordingSink{})

	assert.False(t, outcome.OK())
	assert.Contains(t, outcome.Reason, "loading login page")
	assert.Equal(t, 1, session.closeCalls)
}

func TestFlow_HostFailure(t *testing.T) {
	host := &fakeHost{err: errors.New("chrome not found")}

	outcome := NewFlow(host, &recordingSink{}).Run(context.Background(), claudeTarget())

	assert.False(t, outcome.OK())
	assert.Equal(t, "creating browser session: chrome not found", outcome.Reason)
}

func TestFlow_Cancellation(t *testing.T) {
	session := newFakeSession()
	host := &fakeHost{sessions: []*fakeSession{session}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := NewFlow(host, &recordingSink{}).Run(ctx, claudeTarget())

	assert.False(t, outcome.OK())
	assert.Contains(t, outcome.Reason, "login cancelled")
	assert.Equal(t, 1, session.closeCalls)
}

func TestFlow_FreshPartitionPerAttempt(t *testing.T) {
	first := newFakeSession(Event{Kind: Closed})
	second := newFakeSession(Event{Kind: Closed})
	host := &fakeHost{sessions: []*fakeSession{first, second}}
	flow := NewFlow(host, &recordingSink{})

	flow.Run(context.Background(), claudeTarget())
	flow.Run(context.Background(), claudeTarget())

	require.Len(t, host.namespaces, 2)
	assert.NotEqual(t, host.namespaces[0], host.namespaces[1])
	for _, ns := range host.namespaces {
		assert.Regexp(t, `^persist:anthropic-auth-[0-9a-f-]{36}$`, ns)
	}
}

func TestFlow_MissingMatchRule(t *testing.T) {
	target := claudeTarget()
	target.Match = nil

	outcome := NewFlow(&fakeHost{}, &recordingSink{}).Run(context.Background(), target)

	assert.False(t, outcome.OK())
}

func TestAuthSession_ResolveOnce(t *testing.T) {
	session := newFakeSession()
	as := newAuthSession("persist:test", session)

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				wins <- as.resolve(credential.Success("secret-value-long"))
			} else {
				wins <- as.resolve(credential.Failure("window closed by user"))
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)
	assert.True(t, as.Resolved())
	assert.Equal(t, 1, session.closeCalls)

	// A close after success does not change the outcome
	first := as.Outcome()
	assert.False(t, as.resolve(credential.Failure("window closed by user")))
	assert.Equal(t, first, as.Outcome())
}
