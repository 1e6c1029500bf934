package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/BIGWOO/clawx-auth/internal/app"
)

// flagKeys maps global flags onto config keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
}

// loadConfig loads the layered configuration with explicitly set flags on top.
func loadConfig(path string, cmd *cli.Command, environ func() []string) (*app.Config, error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if cmd.IsSet(flag) {
			overrides[key] = cmd.String(flag)
		}
	}

	return app.LoadConfig(path, overrides, environ)
}

// newAuthenticator builds the login service for the configured storage.
func newAuthenticator(cfg *app.Config, openBrowser bool) (*app.Authenticator, error) {
	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, err
	}

	opener := app.NewBrowserOpener()
	if !openBrowser {
		opener = nil
	}

	return app.NewAuthenticator(cfg, store, app.NewBrowserHost(cfg.Browser), opener), nil
}
