package credential

import (
	"fmt"
	"log/slog"
	"strings"
)

// Outcome is the terminal result of a credential acquisition attempt.
// Exactly one of Secret (success) or Reason (failure) is meaningful.
type Outcome struct {
	ok     bool
	Secret string
	Reason string
}

// Compile-time check that Outcome never leaks its secret into logs
var _ slog.LogValuer = Outcome{}

// Success returns a successful outcome carrying the acquired secret.
func Success(secret string) Outcome {
	return Outcome{ok: true, Secret: secret}
}

// Failure returns a failed outcome with a free-text reason.
func Failure(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Failuref formats a failure reason.
func Failuref(format string, args ...any) Outcome {
	return Failure(fmt.Sprintf(format, args...))
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool { return o.ok }

// String renders the outcome for terminal output with the secret masked.
func (o Outcome) String() string {
	if o.ok {
		return "success (" + MaskSecret(o.Secret) + ")"
	}
	return "failure: " + o.Reason
}

// LogValue implements slog.LogValuer.
func (o Outcome) LogValue() slog.Value {
	if o.ok {
		return slog.GroupValue(
			slog.Bool("success", true),
			slog.String("secret", MaskSecret(o.Secret)),
		)
	}
	return slog.GroupValue(
		slog.Bool("success", false),
		slog.String("reason", o.Reason),
	)
}

// MaskSecret masks a secret for display, showing only the first and last 4 chars.
func MaskSecret(secret string) string {
	if len(secret) <= 12 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
