package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"authorsite/api/internal/content"
)

func newDataCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect the local data directory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List stored keys and their share of the quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				keys, err := env.kv.Keys()
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					cmd.Printf("No data in %s\n", env.kv.Dir())
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tBYTES")
				total := 0
				for _, key := range keys {
					value, ok, err := env.kv.Get(key)
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
					total += len(value)
					fmt.Fprintf(tw, "%s\t%d\n", key, len(value))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if quota := env.kv.Quota(); quota > 0 {
					cmd.Printf("Total: %s MB of %s MB\n", content.SizeInMB(total), content.SizeInMB(quota))
				} else {
					cmd.Printf("Total: %s MB\n", content.SizeInMB(total))
				}
				return nil
			})
		},
	})
	return cmd
}
