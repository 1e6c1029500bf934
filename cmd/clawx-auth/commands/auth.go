package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/BIGWOO/clawx-auth/internal/app"
	"github.com/BIGWOO/clawx-auth/internal/credential"
	"github.com/BIGWOO/clawx-auth/internal/tokenstore"
)

// loginCommand returns the 'login' subcommand.
func loginCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in to a provider and save its credential",
		ArgsUsage: "<provider>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "give up after this long (0 waits until the login finishes)",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "do not open the verification page of device logins",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return loginAction(ctx, cmd, st.cfg)
		},
	}
}

// logoutCommand returns the 'logout' subcommand.
func logoutCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:      "logout",
		Usage:     "Remove a provider's saved credential",
		ArgsUsage: "<provider>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return logoutAction(ctx, cmd, st.cfg)
		},
	}
}

// statusCommand returns the 'status' subcommand.
func statusCommand(st *state) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show which providers have a saved credential",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return statusAction(ctx, cmd, st.cfg)
		},
	}
}

// loginAction runs the provider's login flow in the terminal.
func loginAction(ctx context.Context, cmd *cli.Command, cfg *app.Config) error {
	provider, err := providerArg(cmd, cfg)
	if err != nil {
		return err
	}

	auth, err := newAuthenticator(cfg, !cmd.Bool("no-browser"))
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out := stdout(cmd)
	fmt.Fprintf(out, "=== %s Login ===\n\n", provider.Name)
	if provider.Kind == app.ProviderKindSession {
		fmt.Fprintln(out, "A browser window will open. Sign in there;")
		fmt.Fprintln(out, "it closes by itself once your session is captured.")
	}

	outcome, err := auth.Login(ctx, provider.ID, func(userCode, verificationURI string) {
		fmt.Fprintf(out, "1. Visit this URL in your browser:\n   %s\n\n", verificationURI)
		fmt.Fprintf(out, "2. Enter the code: %s\n\n", userCode)
		fmt.Fprintln(out, "Waiting for authorization...")
	})
	if err != nil {
		return err
	}
	if !outcome.OK() {
		return fmt.Errorf("login failed: %s", outcome.Reason)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Login Successful ===")
	fmt.Fprintf(out, "Credential %s saved to %s storage\n", credential.MaskSecret(outcome.Secret), cfg.Auth.Storage)

	return nil
}

// logoutAction clears the provider's saved credential.
func logoutAction(ctx context.Context, cmd *cli.Command, cfg *app.Config) error {
	provider, err := providerArg(cmd, cfg)
	if err != nil {
		return err
	}

	auth, err := newAuthenticator(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}

	if err := auth.Logout(ctx, provider.ID); err != nil {
		return err
	}

	out := stdout(cmd)
	fmt.Fprintln(out, "=== Logout Successful ===")
	fmt.Fprintf(out, "Credential for %s cleared from %s storage\n", provider.Name, cfg.Auth.Storage)

	return nil
}

// statusAction prints one line per configured provider.
func statusAction(ctx context.Context, cmd *cli.Command, cfg *app.Config) error {
	auth, err := newAuthenticator(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}

	tw := tabwriter.NewWriter(stdout(cmd), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tNAME\tKIND\tCREDENTIAL")
	for _, p := range cfg.ProviderList() {
		cred := "not logged in"
		secret, err := auth.Status(ctx, p.ID)
		switch {
		case err == nil:
			cred = credential.MaskSecret(secret)
		case !errors.Is(err, tokenstore.ErrNotFound):
			cred = "error: " + err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Kind, cred)
	}
	return tw.Flush()
}

// providerArg resolves the provider named by the first argument.
func providerArg(cmd *cli.Command, cfg *app.Config) (app.Provider, error) {
	id := cmd.Args().First()
	if id == "" {
		return app.Provider{}, fmt.Errorf("provider required (one of: %s)", strings.Join(providerIDs(cfg), ", "))
	}
	p, err := cfg.Provider(id)
	if err != nil {
		return app.Provider{}, fmt.Errorf("%w (one of: %s)", err, strings.Join(providerIDs(cfg), ", "))
	}
	return p, nil
}

func providerIDs(cfg *app.Config) []string {
	var ids []string
	for _, p := range cfg.ProviderList() {
		ids = append(ids, p.ID)
	}
	return ids
}
