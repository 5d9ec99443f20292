package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/mcustage/fwstage/internal/devflag"
	"github.com/mcustage/fwstage/stage"
	"github.com/spf13/cobra"
)

// onbootCmd is fwstage onboot.
var onbootCmd = &cobra.Command{
	GroupID: "upgrade",
	Use:     "onboot",
	Short:   "Run the boot-time recovery routine",
	Long: `Run the boot-time recovery routine.

This must run once per boot, before any stage or activate operation:
it confirms or reverts the previous upgrade attempt and settles the
installed criteria.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}
		return onbootImpl.run()
	},
}

type onbootImplConfig struct{}

var onbootImpl onbootImplConfig

func init() {
	devflag.RegisterPflags(onbootCmd.Flags())
}

func (r *onbootImplConfig) run() error {
	// On a real device the revert path resets the hardware so the
	// bootloader can swap back; here we log and report it instead.
	reverted := false
	env, err := newEnv(stage.WithRestart(func() {
		reverted = true
		log.Printf("system reset requested for image revert")
	}))
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.engine.OnBoot(); err != nil {
		return err
	}
	if reverted {
		fmt.Printf("Upgrade reverted; the bootloader will restore the previous image\n")
	} else {
		fmt.Printf("Recovery complete\n")
	}
	return nil
}
