package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/solarops/internal/app"
	"github.com/five82/solarops/internal/resource"
)

func newLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <leads|installs|customers> <id> <message>",
		Short: "Append an entry to a record's activity log",
		Example: `  solarops log leads l-42 "Called, site survey booked for Friday"`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			entry := resource.LogEntry{
				Message: strings.Join(args[2:], " "),
				Author:  author(a),
			}

			var out any
			ctx, id := cmd.Context(), args[1]
			switch strings.ToLower(args[0]) {
			case "leads", "lead":
				out, err = a.Catalog.Leads.AddLog(ctx, id, entry)
			case "installs", "install":
				out, err = a.Catalog.Installs.AddLog(ctx, id, entry)
			case "customers", "customer":
				out, err = a.Catalog.Customers.AddLog(ctx, id, entry)
			default:
				return fmt.Errorf("%s have no activity log (want leads, installs or customers)", args[0])
			}
			if err != nil {
				return err
			}
			return renderValue(cmd, a, out)
		},
	}
}

// author names the signed-in user for log entries, or "" when the token
// carries no email.
func author(a *app.App) string {
	claims, err := a.Sessions.Claims()
	if err != nil {
		return ""
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.Name
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <lead-id>",
		Short: "Convert a won lead into a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			customer, err := a.Catalog.Leads.Convert(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !rendererFor(cmd, a).json() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Converted lead %s into customer %s\n", args[0], customer.ID)
			}
			return renderValue(cmd, a, customer)
		},
	}
}

func newDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download a stored document",
		Long: `Download the content of a file record. Without --output-file the file is
written to the current directory under the name the backend reports, or
the file id when it reports none. Use --output-file - for stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id := args[0]

			if output == "-" {
				_, err := a.Catalog.Files.Download(cmd.Context(), id, cmd.OutOrStdout())
				return err
			}

			dir := "."
			if output != "" {
				dir = filepath.Dir(output)
			}
			tmp, err := os.CreateTemp(dir, ".solarops-download-*")
			if err != nil {
				return fmt.Errorf("create download file: %w", err)
			}
			defer func() { _ = os.Remove(tmp.Name()) }()

			info, err := a.Catalog.Files.Download(cmd.Context(), id, tmp)
			if cerr := tmp.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("write download: %w", cerr)
			}
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = filepath.Join(dir, filepath.Base(info.Filename))
				if base := filepath.Base(info.Filename); info.Filename == "" || base == "." || base == string(filepath.Separator) {
					dest = id
				}
			}
			if err := os.Rename(tmp.Name(), dest); err != nil {
				return fmt.Errorf("save download: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", dest, info.Size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output-file", "O", "", "destination path (- for stdout)")
	return cmd
}

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notes"},
		Short:   "Show unread notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			unread, err := a.Catalog.Notifications.Unread(cmd.Context())
			if err != nil {
				return err
			}
			return rendererFor(cmd, a).fields([][2]string{{"unread", fmt.Sprint(unread)}})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			note, err := a.Catalog.Notifications.MarkRead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderValue(cmd, a, note)
		},
	})
	return cmd
}

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "browse [resource]",
		Short:             "Browse a collection interactively",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return a.Browse(cmd.Context(), name)
		},
	}
}

func renderValue(cmd *cobra.Command, a *app.App, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return rendererFor(cmd, a).record(data)
}
