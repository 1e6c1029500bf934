package deviceflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/BIGWOO/clawx-auth/internal/credential"
)

// maxResponseSize bounds how much of an endpoint response is read.
const maxResponseSize = 1 << 20

var tracer = otel.Tracer("github.com/BIGWOO/clawx-auth/internal/deviceflow")

// errTransient marks token endpoint failures that must not end the polling loop.
var errTransient = errors.New("transient token endpoint failure")

// Provider describes a device-flow capable provider.
// ClientID is a public, provider-issued identifier, not a secret.
type Provider struct {
	// ID is the key the acquired token is saved under.
	ID       string
	Endpoint oauth2.Endpoint
	ClientID string
	Scope    string
}

// UserCodeFunc receives the code the user must enter and where to enter it.
type UserCodeFunc func(userCode, verificationURI string)

// BrowserOpener opens a URL in the user's external browser.
type BrowserOpener interface {
	OpenURL(url string) error
}

// Client runs the device authorization grant against one provider.
// A Client holds no per-attempt state and may run concurrent attempts.
type Client struct {
	provider   Provider
	sink       credential.Sink
	httpClient *http.Client
	browser    BrowserOpener
	clock      credential.Clock
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for endpoint requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBrowserOpener sets the opener for the verification URI. A nil opener
// disables the browser launch.
func WithBrowserOpener(b BrowserOpener) Option {
	return func(cl *Client) {
		cl.browser = b
	}
}

// WithClock sets the clock driving deadlines and poll spacing.
func WithClock(clock credential.Clock) Option {
	return func(cl *Client) {
		cl.clock = clock
	}
}

// NewClient creates a device-flow client for the provider.
func NewClient(provider Provider, sink credential.Sink, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		sink:     sink,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		clock: credential.RealClock{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Provider returns the provider this client authenticates against.
func (c *Client) Provider() Provider { return c.provider }

// Login runs the flow with the provider's configured client id and scope.
func (c *Client) Login(ctx context.Context, onUserCode UserCodeFunc) credential.Outcome {
	return c.Run(ctx, c.provider.ClientID, c.provider.Scope, onUserCode)
}

// Run requests a device code, hands the user code to onUserCode, opens the
// verification URI and polls the token endpoint until a terminal outcome.
// On success the token is saved to the sink under the provider id.
func (c *Client) Run(ctx context.Context, clientID, scope string, onUserCode UserCodeFunc) (outcome credential.Outcome) {
	ctx, span := tracer.Start(ctx, "deviceflow.Run", trace.WithAttributes(
		attribute.String("provider", c.provider.ID),
	))
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "device flow panicked", "provider", c.provider.ID, "panic", r)
			outcome = credential.Failuref("%v", r)
		}
		if !outcome.OK() {
			span.SetStatus(codes.Error, outcome.Reason)
		}
		span.End()
		slog.InfoContext(ctx, "device flow finished", "provider", c.provider.ID, "outcome", outcome)
	}()

	grant, err := c.requestCode(ctx, clientID, scope)
	if err != nil {
		return credential.Failure(err.Error())
	}

	slog.InfoContext(ctx, "device code obtained",
		"provider", c.provider.ID,
		"user_code", grant.UserCode,
		"poll_interval", grant.PollInterval,
		"expires_at", grant.ExpiresAt,
	)

	if onUserCode != nil {
		onUserCode(grant.UserCode, grant.VerificationURI)
	}

	// The user can still navigate manually if the browser cannot be opened
	if c.browser != nil {
		if err := c.browser.OpenURL(grant.VerificationURI); err != nil {
			slog.WarnContext(ctx, "failed to open verification URI", "url", grant.VerificationURI, "error", err)
		}
	}

	return c.poll(ctx, clientID, grant)
}

// poll drives the Polling state until success, a terminal error, or the deadline.
func (c *Client) poll(ctx context.Context, clientID string, grant *Grant) credential.Outcome {
	for c.clock.Now().Before(grant.ExpiresAt) {
		if err := c.clock.Sleep(ctx, grant.PollInterval); err != nil {
			return credential.Failuref("login cancelled: %v", err)
		}

		// No requests once the grant has expired
		if !c.clock.Now().Before(grant.ExpiresAt) {
			break
		}

		resp, err := c.requestToken(ctx, clientID, grant.DeviceCode)
		if err != nil {
			if ctx.Err() != nil {
				return credential.Failuref("login cancelled: %v", ctx.Err())
			}
			if errors.Is(err, errTransient) {
				slog.DebugContext(ctx, "token poll failed, retrying", "provider", c.provider.ID, "error", err)
				continue
			}
			return credential.Failure(err.Error())
		}

		if resp.AccessToken != "" {
			slog.InfoContext(ctx, "access token obtained", "provider", c.provider.ID)
			if err := c.sink.Save(ctx, c.provider.ID, resp.AccessToken); err != nil {
				return credential.Failuref("token save failed: %v", err)
			}
			return credential.Success(resp.AccessToken)
		}

		switch resp.ErrorCode {
		case errAuthorizationPending:
			continue
		case errSlowDown:
			slog.DebugContext(ctx, "server requested slow down", "provider", c.provider.ID, "delay", SlowDownDelay)
			if err := c.clock.Sleep(ctx, SlowDownDelay); err != nil {
				return credential.Failuref("login cancelled: %v", err)
			}
			continue
		case errExpiredToken, errAccessDenied:
			return credential.Failure(resp.failureReason())
		default:
			slog.WarnContext(ctx, "unrecognized token response, retrying",
				"provider", c.provider.ID,
				"error_code", resp.ErrorCode,
			)
		}
	}

	return credential.Failure("device code expired")
}

// requestCode performs the RequestingCode step.
func (c *Client) requestCode(ctx context.Context, clientID, scope string) (*Grant, error) {
	body, status, err := c.postJSON(ctx, c.provider.Endpoint.DeviceAuthURL, deviceCodeRequest{
		ClientID: clientID,
		Scope:    scope,
	})
	if err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}

	if !isSuccess(status) {
		return nil, fmt.Errorf("device code request failed: %d", status)
	}

	issued := c.clock.Now()

	var resp deviceCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding device code response: %w", err)
	}

	if resp.DeviceCode == "" || resp.UserCode == "" {
		return nil, errors.New("device code response missing device_code or user_code")
	}

	return newGrant(resp, issued), nil
}

// requestToken performs one token endpoint poll. Errors wrapping errTransient
// leave the polling state unchanged.
func (c *Client) requestToken(ctx context.Context, clientID, deviceCode string) (*tokenResponse, error) {
	body, status, err := c.postJSON(ctx, c.provider.Endpoint.TokenURL, tokenRequest{
		ClientID:   clientID,
		DeviceCode: deviceCode,
		GrantType:  GrantType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTransient, err)
	}

	var resp tokenResponse
	decodeErr := json.Unmarshal(body, &resp)

	if !isSuccess(status) {
		// RFC 8628 servers signal pending/denied states with 400 responses
		if decodeErr == nil && resp.isProtocolError() {
			return &resp, nil
		}
		return nil, fmt.Errorf("%w: status %d", errTransient, status)
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("decoding token response: %w", decodeErr)
	}

	return &resp, nil
}

// postJSON sends a JSON POST and returns the bounded response body and status.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, int, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "clawx-auth/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	return body, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
