package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aerodesk/aerodesk/internal/buildinfo"
)

// Command prints build metadata.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\nsystem id: %s\n", build, build.SystemID())
			return err
		},
	}
}
