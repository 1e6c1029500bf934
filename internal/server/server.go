// Package server exposes credential acquisition to a local desktop UI over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/BIGWOO/clawx-auth/internal/credential"
	"github.com/BIGWOO/clawx-auth/internal/observability/middleware"
)

// ReadinessChecker reports whether the application can serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// ProviderInfo describes a configured provider to API clients.
type ProviderInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	LoggedIn bool   `json:"logged_in"`
}

// ErrUnknownProvider is returned by a LoginService for provider ids it does not know.
var ErrUnknownProvider = errors.New("unknown provider")

// LoginService runs login flows on behalf of the API.
type LoginService interface {
	Providers(ctx context.Context) []ProviderInfo
	// Login blocks until the provider's flow resolves. onUserCode is invoked
	// on the calling goroutine for device flows.
	Login(ctx context.Context, providerID string, onUserCode func(userCode, verificationURI string)) (credential.Outcome, error)
}

// Server is the local control API.
type Server struct {
	handler http.Handler
	logins  LoginService

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}

	httpServer *http.Server
}

// Compile-time check to ensure Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// Option configures a Server.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates the API server.
func New(logins LoginService, health ReadinessChecker, opts ...Option) (*Server, error) {
	if logins == nil {
		return nil, errors.New("login service is required")
	}
	if health == nil {
		return nil, errors.New("readiness checker is required")
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		logins:   logins,
		inFlight: make(map[string]struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /livez", livenessHandler())
	mux.Handle("GET /readyz", readinessHandler(health))
	mux.Handle("GET /v1/providers", providersHandler(logins))
	mux.Handle("POST /v1/auth/{provider}/login", &loginHandler{server: s})

	s.handler = applyMiddlewares(mux,
		middleware.RequestIDGeneration,
		middleware.TraceContextExtraction,
		middleware.Logging(o.logger, "/livez", "/readyz"),
		middleware.RequestIDPropagation,
		Recovery,
		RequestSizeLimit(1<<10),
	)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background. Runtime errors are
// delivered on the returned channel, which is closed when serving stops.
func (s *Server) Start(ctx context.Context, addr string) (<-chan error, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: login streams stay open until the user finishes
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	slog.InfoContext(ctx, "control API listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// knows reports whether providerID is configured.
func (s *Server) knows(ctx context.Context, providerID string) bool {
	for _, p := range s.logins.Providers(ctx) {
		if p.ID == providerID {
			return true
		}
	}
	return false
}

// acquire marks a login as running for providerID; it fails if one already is.
func (s *Server) acquire(providerID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, ok := s.inFlight[providerID]; ok {
		return false
	}
	s.inFlight[providerID] = struct{}{}
	return true
}

func (s *Server) release(providerID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, providerID)
}
