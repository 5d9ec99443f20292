package cli

import (
	"fmt"
	"os"

	"github.com/mcustage/fwstage/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd is fwstage version.
var versionCmd = &cobra.Command{
	GroupID: "inspect",
	Use:     "version",
	Short:   "Print the fwstage version",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}
		fmt.Println(version.Read())
		return nil
	},
}
