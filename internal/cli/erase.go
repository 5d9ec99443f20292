package cli

import (
	"fmt"
	"os"

	"github.com/mcustage/fwstage/internal/devflag"
	"github.com/spf13/cobra"
)

// eraseCmd is fwstage erase.
var eraseCmd = &cobra.Command{
	GroupID: "upgrade",
	Use:     "erase",
	Short:   "Erase the secondary slot and discard the staged image",
	Long: `Erase the secondary slot and discard the staged image.

The upgrade attempt fields of the state record are cleared as well;
with --all the settled installed criteria is discarded too.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}
		return eraseImpl.run()
	},
}

type eraseImplConfig struct {
	all bool
}

var eraseImpl eraseImplConfig

func init() {
	devflag.RegisterPflags(eraseCmd.Flags())
	eraseCmd.Flags().BoolVar(&eraseImpl.all, "all", false, "also discard the settled installed criteria")
}

func (r *eraseImplConfig) run() error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	if err := env.secondary.Erase(0, env.secondary.Size()); err != nil {
		return fmt.Errorf("erasing secondary slot: %w", err)
	}
	if err := env.state.Reset(r.all); err != nil {
		return fmt.Errorf("resetting upgrade state: %w", err)
	}
	fmt.Printf("Secondary slot erased (%d bytes)\n", env.secondary.Size())
	return nil
}
