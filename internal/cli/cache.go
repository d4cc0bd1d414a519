package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache maintenance command group.
func NewCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the feed snapshot cache",
	}
	cmd.AddCommand(newCacheStatusCommand(opts))
	cmd.AddCommand(newCacheClearCommand(opts))
	return cmd
}

func newCacheStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show snapshot age and validity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.store.ReadSnapshot(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read snapshot", err)
			}

			out := cmd.OutOrStdout()
			if snap == nil {
				fmt.Fprintln(out, "cache: empty")
				return nil
			}

			age := time.Since(snap.WrittenAt).Round(time.Second)
			ttl := time.Duration(a.cfg.Cache.TTLMinutes) * time.Minute
			valid := ttl == 0 || age <= ttl
			fmt.Fprintf(out, "cache: %d records, written %s (%s ago)\n",
				snap.Count, snap.WrittenAt.Format(time.RFC3339), age)
			if ttl == 0 {
				fmt.Fprintln(out, "ttl: none (valid until cleared)")
			} else {
				fmt.Fprintf(out, "ttl: %s, valid: %v\n", ttl, valid)
			}
			return nil
		},
	}
}

func newCacheClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop the persisted snapshot, forcing a fresh fetch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.ClearSnapshot(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear snapshot", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}
