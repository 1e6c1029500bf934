package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BIGWOO/clawx-auth/internal/browser"
	"github.com/BIGWOO/clawx-auth/internal/browser/chromium"
	"github.com/BIGWOO/clawx-auth/internal/credential"
	"github.com/BIGWOO/clawx-auth/internal/deviceflow"
	"github.com/BIGWOO/clawx-auth/internal/observability"
	"github.com/BIGWOO/clawx-auth/internal/server"
	"github.com/BIGWOO/clawx-auth/internal/sessioncapture"
	"github.com/BIGWOO/clawx-auth/internal/tokenstore"
)

// ErrReadOnlyStorage is returned when a login or logout targets the env store.
var ErrReadOnlyStorage = errors.New("cannot change credentials with env storage (read-only); configure file or keyring storage")

// Authenticator runs provider logins and saves their secrets to the token store.
type Authenticator struct {
	cfg    *Config
	store  tokenstore.Store
	host   sessioncapture.Host
	opener deviceflow.BrowserOpener

	deviceOpts []deviceflow.Option
}

// Compile-time check that Authenticator implements server.LoginService
var _ server.LoginService = (*Authenticator)(nil)

// NewAuthenticator wires the login flows to store. A nil opener disables
// opening the verification page of device flows.
func NewAuthenticator(cfg *Config, store tokenstore.Store, host sessioncapture.Host, opener deviceflow.BrowserOpener) *Authenticator {
	return &Authenticator{
		cfg:    cfg,
		store:  store,
		host:   host,
		opener: opener,
	}
}

// NewBrowserHost creates the session capture host from configuration.
func NewBrowserHost(cfg BrowserConfig) *chromium.Host {
	return chromium.NewHost(
		chromium.WithChromePath(cfg.ChromePath),
		chromium.WithHeadless(cfg.Headless),
	)
}

// NewBrowserOpener returns the system browser opener.
func NewBrowserOpener() deviceflow.BrowserOpener {
	return browser.NewOpener()
}

// Login runs the flow of providerID until it resolves. The returned error is
// only set when the login could not be attempted at all.
func (a *Authenticator) Login(ctx context.Context, providerID string, onUserCode func(userCode, verificationURI string)) (credential.Outcome, error) {
	p, err := a.cfg.Provider(providerID)
	if err != nil {
		return credential.Outcome{}, fmt.Errorf("%w: %s", server.ErrUnknownProvider, providerID)
	}

	if _, ok := a.store.(*tokenstore.EnvStore); ok {
		return credential.Outcome{}, ErrReadOnlyStorage
	}

	ctx = observability.ContextWithAttrs(ctx, slog.String("login_provider", p.ID))
	slog.InfoContext(ctx, "starting login", "kind", p.Kind)

	switch p.Kind {
	case ProviderKindSession:
		flow := sessioncapture.NewFlow(a.host, a.store, sessioncapture.WithSettleDelay(p.SettleDelay))
		return flow.Run(ctx, p.Target), nil
	case ProviderKindDevice:
		opts := append([]deviceflow.Option{deviceflow.WithBrowserOpener(a.opener)}, a.deviceOpts...)
		client := deviceflow.NewClient(p.Device, a.store, opts...)
		return client.Login(ctx, onUserCode), nil
	default:
		return credential.Outcome{}, fmt.Errorf("provider %s has unsupported kind %q", p.ID, p.Kind)
	}
}

// Logout removes the stored secret of providerID.
func (a *Authenticator) Logout(ctx context.Context, providerID string) error {
	if _, err := a.cfg.Provider(providerID); err != nil {
		return fmt.Errorf("%w: %s", server.ErrUnknownProvider, providerID)
	}
	if err := a.store.Delete(ctx, providerID); err != nil {
		if errors.Is(err, tokenstore.ErrReadOnly) {
			return ErrReadOnlyStorage
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Status returns the stored secret of providerID, if any.
func (a *Authenticator) Status(ctx context.Context, providerID string) (string, error) {
	return a.store.Load(ctx, providerID)
}

// Providers lists configured providers with their login state.
func (a *Authenticator) Providers(ctx context.Context) []server.ProviderInfo {
	list := a.cfg.ProviderList()
	infos := make([]server.ProviderInfo, 0, len(list))
	for _, p := range list {
		_, err := a.store.Load(ctx, p.ID)
		if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
			slog.WarnContext(ctx, "failed to read stored token", "provider", p.ID, "error", err)
		}
		infos = append(infos, server.ProviderInfo{
			ID:       p.ID,
			Name:     p.Name,
			Kind:     string(p.Kind),
			LoggedIn: err == nil,
		})
	}
	return infos
}
