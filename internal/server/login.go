package server

import (
	"log/slog"
	"net/http"

	"github.com/BIGWOO/clawx-auth/internal/credential"
	"github.com/BIGWOO/clawx-auth/internal/observability/middleware"
)

// Event names of the login stream.
const (
	EventUserCode = "user_code"
	EventOutcome  = "outcome"
)

// UserCodeEvent tells the UI what the user must enter and where.
type UserCodeEvent struct {
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
}

// OutcomeEvent is the final event of a login stream. The secret is never sent.
type OutcomeEvent struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// loginHandler runs a provider's login flow and streams its progress.
// Disconnecting cancels the flow.
type loginHandler struct {
	server *Server
}

var _ http.Handler = (*loginHandler)(nil)

func (h *loginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID := r.PathValue("provider")

	middleware.SetLogAttrs(ctx, slog.String("provider", providerID))

	if !h.server.knows(ctx, providerID) {
		writeJSONError(ctx, w, http.StatusNotFound, ErrUnknownProvider.Error()+": "+providerID)
		return
	}

	if !h.server.acquire(providerID) {
		writeJSONError(ctx, w, http.StatusConflict, "login already in progress for "+providerID)
		return
	}
	defer h.server.release(providerID)

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		return
	}

	onUserCode := func(userCode, verificationURI string) {
		if err := sse.WriteEvent(EventUserCode, UserCodeEvent{UserCode: userCode, VerificationURI: verificationURI}); err != nil {
			slog.DebugContext(ctx, "failed to write user code event", "error", err)
		}
	}

	outcome, err := h.server.logins.Login(ctx, providerID, onUserCode)
	if err != nil {
		outcome = credential.Failure(err.Error())
	}

	if ctx.Err() != nil {
		slog.DebugContext(ctx, "client disconnected during login")
		return
	}

	ev := OutcomeEvent{Success: outcome.OK()}
	if !outcome.OK() {
		ev.Error = outcome.Reason
	}
	if err := sse.WriteEvent(EventOutcome, ev); err != nil {
		slog.DebugContext(ctx, "failed to write outcome event", "error", err)
	}
}
