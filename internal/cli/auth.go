package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/solarops/internal/config"
	"github.com/five82/solarops/internal/session"
)

const emailEnv = config.EnvPrefix + "EMAIL"

func newLoginCmd() *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. The bearer token and the refresh cookie
are written to the session file, so later commands stay signed in until the
refresh cookie expires or you log out.`,
		Example: `  # Prompt-free login for scripts
  echo "$BPM_PASSWORD" | solarops login --email ops@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if email == "" {
				email = strings.TrimSpace(os.Getenv(emailEnv))
			}
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required (use --email and --password or --password-stdin)")
			}

			if _, err := a.Client.Login(cmd.Context(), email, password); err != nil {
				return err
			}

			claims, err := a.Sessions.Claims()
			if err != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", email)
				return nil
			}
			who := claims.Email
			if who == "" {
				who = email
			}
			msg := "Signed in as " + who
			if !claims.ExpiresAt.IsZero() {
				msg += " (token expires " + claims.ExpiresAt.Local().Format(time.Kitchen) + ")"
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (default $"+emailEnv+")")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := a.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Long: `Show the identity carried by the stored bearer token. The token is decoded
locally without verification; pass --check to also ask the backend whether
the session is still valid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if check {
				if _, err := a.Client.Authenticated(cmd.Context()); err != nil {
					return fmt.Errorf("session check: %w", err)
				}
			}

			claims, err := a.Sessions.Claims()
			switch {
			case errors.Is(err, session.ErrNoToken):
				return errors.New("not signed in: run `solarops login` first")
			case errors.Is(err, session.ErrOpaqueToken):
				return rendererFor(cmd, a).fields([][2]string{
					{"api", a.Client.BaseURL()},
					{"token", "opaque"},
				})
			case err != nil:
				return err
			}

			pairs := [][2]string{
				{"api", a.Client.BaseURL()},
				{"subject", claims.Subject},
				{"email", claims.Email},
			}
			if claims.Name != "" {
				pairs = append(pairs, [2]string{"name", claims.Name})
			}
			if !claims.ExpiresAt.IsZero() {
				state := claims.ExpiresAt.Format(time.RFC3339)
				if claims.Expired(time.Now()) {
					state += " (expired, refreshed on next request)"
				}
				pairs = append(pairs, [2]string{"expires", state})
			}
			return rendererFor(cmd, a).fields(pairs)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "verify the session with the backend")
	return cmd
}
