package sessioncapture

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BIGWOO/clawx-auth/internal/credential"
)

// DefaultSettleDelay is how long after landing on an authenticated page the
// cookie store is inspected.
const DefaultSettleDelay = 1500 * time.Millisecond

var tracer = otel.Tracer("github.com/BIGWOO/clawx-auth/internal/sessioncapture")

// Flow captures session cookies through a browser host.
// A Flow holds no per-attempt state and may run concurrent attempts.
type Flow struct {
	host   Host
	sink   credential.Sink
	settle time.Duration
	after  func(time.Duration) <-chan time.Time
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithSettleDelay sets the delay between a landing navigation and the cookie check.
func WithSettleDelay(d time.Duration) FlowOption {
	return func(f *Flow) {
		f.settle = d
	}
}

// NewFlow creates a capture flow that saves captured secrets to sink.
func NewFlow(host Host, sink credential.Sink, opts ...FlowOption) *Flow {
	f := &Flow{
		host:   host,
		sink:   sink,
		settle: DefaultSettleDelay,
		after:  time.After,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Run opens the login page in a fresh isolated session and waits until a
// session cookie is captured, the window is closed, or ctx is done.
func (f *Flow) Run(ctx context.Context, target Target) (outcome credential.Outcome) {
	partitionID := "persist:" + target.ProviderID + "-auth-" + uuid.NewString()

	ctx, span := tracer.Start(ctx, "sessioncapture.Run", trace.WithAttributes(
		attribute.String("provider", target.ProviderID),
		attribute.String("partition", partitionID),
	))
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "session capture panicked", "provider", target.ProviderID, "panic", r)
			outcome = credential.Failuref("%v", r)
		}
		if !outcome.OK() {
			span.SetStatus(codes.Error, outcome.Reason)
		}
		span.End()
		slog.InfoContext(ctx, "session capture finished", "provider", target.ProviderID, "outcome", outcome)
	}()

	if target.Match == nil {
		return credential.Failure("no cookie match rule configured")
	}

	session, err := f.host.CreateSession(ctx, partitionID)
	if err != nil {
		return credential.Failuref("creating browser session: %v", err)
	}

	as := newAuthSession(partitionID, session)
	// Never leave the window behind, whatever path returns
	defer as.resolve(credential.Failure("session abandoned"))

	slog.InfoContext(ctx, "opening login window",
		"provider", target.ProviderID,
		"url", target.LoginURL,
		"partition", partitionID,
	)

	if err := session.LoadURL(ctx, target.LoginURL); err != nil {
		as.resolve(credential.Failuref("loading login page: %v", err))
		return as.Outcome()
	}

	f.loop(ctx, as, target)

	return as.Outcome()
}

// loop consumes session events until the attempt resolves.
func (f *Flow) loop(ctx context.Context, as *AuthSession, target Target) {
	events := as.session.Events()
	var settle <-chan time.Time

	for !as.Resolved() {
		select {
		case <-ctx.Done():
			as.resolve(credential.Failuref("login cancelled: %v", ctx.Err()))

		case <-settle:
			settle = nil
			f.check(ctx, as, target)

		case ev, ok := <-events:
			if !ok {
				as.resolve(credential.Failure("window closed by user"))
				continue
			}

			switch ev.Kind {
			case CookieChanged:
				if ev.Cookie.Removed || !domainMatches(ev.Cookie.Domain, target.SessionDomain) {
					continue
				}
				f.check(ctx, as, target)
			case Navigated:
				if settle == nil && target.isLanding(ev.URL) {
					slog.DebugContext(ctx, "landed on authenticated page", "provider", target.ProviderID, "url", ev.URL)
					settle = f.after(f.settle)
				}
			case Closed:
				as.resolve(credential.Failure("window closed by user"))
			}
		}
	}
}

// check inspects the session cookie store and resolves on the first match.
func (f *Flow) check(ctx context.Context, as *AuthSession, target Target) {
	cookies, err := as.session.Cookies(ctx, target.SessionDomain)
	if err != nil {
		slog.WarnContext(ctx, "failed to list cookies", "provider", target.ProviderID, "error", err)
		return
	}

	for _, c := range cookies {
		if c.Removed || c.Value == "" || !domainMatches(c.Domain, target.SessionDomain) || !target.Match(c.Name) {
			continue
		}

		slog.InfoContext(ctx, "session cookie captured", "provider", target.ProviderID, "cookie", c.Name)

		if err := f.sink.Save(ctx, target.ProviderID, c.Value); err != nil {
			as.resolve(credential.Failuref("token save failed: %v", err))
			return
		}
		as.resolve(credential.Success(c.Value))
		return
	}
}
