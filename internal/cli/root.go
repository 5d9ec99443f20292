// Package cli implements the fwstage command line interface.
package cli

import (
	"fmt"
	"log"

	"github.com/mcustage/fwstage/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fwstage",
		Short: "stage, activate and confirm MCUboot firmware upgrades",
		Long: `The fwstage tool drives the firmware staging engine against a device
profile (slot images plus persistent state on disk):

1. Stage a firmware image into the secondary slot (fwstage stage),
2. Activate the staged image for the next boot (fwstage activate),
3. Run the boot-time recovery routine (fwstage onboot),
4. Inspect the upgrade state (fwstage status).
`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			versionVal, err := cmd.Flags().GetBool("version")
			if err != nil {
				return fmt.Errorf("BUG: version flag declared as non-bool")
			}
			if versionVal {
				fmt.Println(version.Read())
				return nil
			}
			return pflag.ErrHelp
		},
	}
	rootCmd.AddGroup(&cobra.Group{
		ID:    "upgrade",
		Title: "Commands driving the upgrade lifecycle:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "inspect",
		Title: "Commands to inspect upgrade state:",
	})
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(onbootCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Flags().BoolP("version", "v", false, "print fwstage version")
	return rootCmd
}

func Execute() {
	if err := RootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
