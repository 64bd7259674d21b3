package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"authorsite/api/internal/contact"
	"authorsite/api/internal/store"
)

func newMessagesCommand(opts *rootOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Triage contact form messages",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				messages, err := env.contactService().List(cmd.Context(), status)
				if err != nil {
					return err
				}
				if len(messages) == 0 {
					cmd.Println("No messages")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tRECEIVED\tSTATUS\tNAME\tEMAIL\tMESSAGE")
				for _, msg := range messages {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						msg.ID, msg.CreatedAt.Local().Format(time.DateTime), msg.Status, msg.Name, msg.Email, preview(msg.Message, 50))
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVarP(&status, "status", "s", "", "only messages with this status (new, read, archived, deleted)")

	cmd.AddCommand(
		list,
		newMessageStatusCommand(opts, "read", "Mark a message as read", (*contact.Service).MarkRead),
		newMessageStatusCommand(opts, "archive", "Archive a message", (*contact.Service).Archive),
		newMessageStatusCommand(opts, "delete", "Delete a message, keeping a tombstone", (*contact.Service).Delete),
	)
	return cmd
}

type statusChange func(*contact.Service, context.Context, string) (store.ContactMessage, error)

func newMessageStatusCommand(opts *rootOptions, use, short string, change statusChange) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnvironment(cmd.Context(), func(env *environment) error {
				msg, err := change(env.contactService(), cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("Message %s is now %s\n", msg.ID, msg.Status)
				return nil
			})
		},
	}
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
