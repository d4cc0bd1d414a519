package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTokenCommand creates the source-token maintenance command group.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the source API token",
	}
	cmd.AddCommand(newTokenRefreshCommand(opts))
	return cmd
}

func newTokenRefreshCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a login and refresh the cached source token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := a.tokens.Login(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "login failed", err)
			}
			// Never print the token itself.
			fmt.Fprintf(cmd.OutOrStdout(), "token refreshed (%d bytes)\n", len(token))
			return nil
		},
	}
}
