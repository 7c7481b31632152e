package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andywolf/delimreport/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including commit hash and build date.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("long")
			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			}
		},
	}
	cmd.Flags().BoolP("long", "l", false, "print verbose version information")
	return cmd
}
