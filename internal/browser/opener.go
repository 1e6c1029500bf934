// Package browser opens URLs in the user's default browser.
package browser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pkg/browser"
)

// Opener launches the system browser. Only http and https URLs are opened.
type Opener struct {
	open func(string) error
}

// NewOpener creates an Opener backed by the platform's URL handler.
func NewOpener() *Opener {
	return &Opener{open: browser.OpenURL}
}

// OpenURL validates rawURL and hands it to the system browser.
func (o *Opener) OpenURL(rawURL string) error {
	if err := ValidateURL(rawURL); err != nil {
		return err
	}
	slog.Debug("opening browser", "url", rawURL)
	if err := o.open(rawURL); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// ValidateURL rejects URLs that are unsafe to pass to a system URL handler.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("URL scheme %q is not allowed", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a valid host")
	}

	// Control characters would survive into the handler's command line
	if strings.ContainsAny(rawURL, "\n\r\t\x00") {
		return fmt.Errorf("URL contains control characters")
	}

	return nil
}
