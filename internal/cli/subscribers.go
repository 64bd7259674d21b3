package cli

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"authorsite/api/internal/newsletter"
)

func newSubscribersCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribers",
		Short: "Manage the newsletter list",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List newsletter subscribers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withEnvironment(cmd.Context(), func(env *environment) error {
					subs, err := env.newsletter().Subscribers(cmd.Context())
					if err != nil {
						return err
					}
					if len(subs) == 0 {
						cmd.Println("No subscribers yet")
						return nil
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tEMAIL\tSUBSCRIBED\tSTATUS")
					for _, sub := range subs {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", sub.ID, sub.Email, sub.SubscribedAt.Format(time.DateOnly), sub.Status)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					cmd.Printf("Total: %d subscribers\n", len(subs))
					return nil
				})
			},
		},
		newSubscribersExportCommand(opts),
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a subscriber",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid subscriber id %q", args[0])
				}
				return opts.withEnvironment(cmd.Context(), func(env *environment) error {
					if err := env.newsletter().Remove(cmd.Context(), id); err != nil {
						return err
					}
					cmd.Printf("Removed subscriber %d\n", id)
					return nil
				})
			},
		},
	)
	return cmd
}

func newSubscribersExportCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export subscribers as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				if out == "-" {
					_, err := env.newsletter().ExportCSV(cmd.Context(), cmd.OutOrStdout())
					return err
				}
				if out == "" {
					out = newsletter.ExportFilename(time.Now())
				}
				var buf bytes.Buffer
				count, err := env.newsletter().ExportCSV(cmd.Context(), &buf)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				cmd.Printf("Exported %d subscribers to %s\n", count, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default suscriptores-<date>.csv)`)
	return cmd
}
