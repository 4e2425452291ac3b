// Package cli implements the solarops command line on top of internal/app.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/solarops/internal/app"
	"github.com/five82/solarops/internal/config"
	"github.com/five82/solarops/internal/logging"
)

// Version is set at build time.
var Version = "dev"

type appKey struct{}

// NewRootCmd builds the solarops command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "solarops",
		Short: "Operate the solar installation BPM from the terminal",
		Long: `solarops talks to the solar installation BPM REST API.

It keeps a session (bearer token plus refresh cookie) on disk, refreshes it
transparently when the backend answers 401, and lists any collection through
the same query/view/filter/sort/paginate pipeline the web front end uses.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipSetup(cmd) {
				return nil
			}

			cfg, err := config.Load(configPath, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			if cfg.File != "" {
				log.WithField("path", cfg.File).Debug("loaded config")
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.config/solarops/config.toml)")
	flags.String("api-url", "", "BPM API base URL")
	flags.String("session-path", "", "session file (default ~/.config/solarops/session.toml)")
	flags.Int("page-size", 0, "records per page")
	flags.Duration("request-timeout", 0, "per-request timeout (0 = none)")
	flags.Duration("poll-interval", 0, "notification poll interval for browse")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (text|json)")
	flags.StringP("output", "o", "", "output format (table|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputTable, config.OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newListCmd(),
		newGetCmd(),
		newCreateCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newLogCmd(),
		newConvertCmd(),
		newDownloadCmd(),
		newNotificationsCmd(),
		newBrowseCmd(),
	)

	return rootCmd
}

// Execute runs the command line with the given arguments and streams.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	return rootCmd.ExecuteContext(ctx)
}

func skipSetup(cmd *cobra.Command) bool {
	if p := cmd.Parent(); p != nil && p.Name() == "completion" {
		return true
	}
	switch cmd.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	return false
}

func appFrom(cmd *cobra.Command) (*app.App, error) {
	if a, ok := cmd.Context().Value(appKey{}).(*app.App); ok {
		return a, nil
	}
	return nil, errors.New("command context is not initialised")
}

func rendererFor(cmd *cobra.Command, a *app.App) renderer {
	return renderer{w: cmd.OutOrStdout(), format: a.Config.Output}
}
