package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the delivery-history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List delivered termination events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.store.History(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read delivery history", err)
			}
			if limit > 0 && len(events) > limit {
				events = events[:limit]
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "no deliveries recorded")
				return nil
			}
			for _, ev := range events {
				fmt.Fprintf(out, "%s  %-8s %-12s %s\n",
					ev.DeliveredAt.Format(time.RFC3339), ev.EmployeeNo, ev.EventDate, ev.FullName)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many entries (0 = all)")
	return cmd
}
