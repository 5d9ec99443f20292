package cli

import (
	"fmt"
	"os"

	"github.com/mcustage/fwstage/internal/devflag"
	"github.com/mcustage/fwstage/stage"
	"github.com/spf13/cobra"
)

// activateCmd is fwstage activate.
var activateCmd = &cobra.Command{
	GroupID: "upgrade",
	Use:     "activate",
	Short:   "Mark the staged image pending and request a reboot",
	Long: `Mark the staged image pending and request a reboot.

The staged image is re-verified against the manifest digest first; an
image that does not verify is never activated. The installed criteria
marker is persisted provisionally and becomes durable only once the
swapped image is confirmed after the reboot.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}
		return activateImpl.run()
	},
}

type activateImplConfig struct {
	criteria string
	algo     string
	hash     string
	size     int64
}

var activateImpl activateImplConfig

func init() {
	devflag.RegisterPflags(activateCmd.Flags())
	activateCmd.Flags().StringVar(&activateImpl.criteria, "criteria", "", "installed criteria marker identifying this update")
	activateCmd.Flags().StringVar(&activateImpl.algo, "algo", "sha256", "digest algorithm of --hash (sha256, sha384, sha512)")
	activateCmd.Flags().StringVar(&activateImpl.hash, "hash", "", "expected image digest, base64-encoded")
	activateCmd.Flags().Int64Var(&activateImpl.size, "size", 0, "staged image size in bytes")
}

func (r *activateImplConfig) run() error {
	if r.hash == "" || r.size == 0 {
		return fmt.Errorf("--hash and --size are required to re-verify the staged image")
	}

	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	hs := stage.HashSpec{Algorithm: r.algo, Digest: r.hash}
	if err := env.engine.VerifyStaged(r.size, hs); err != nil {
		return fmt.Errorf("staged image verification: %v", err)
	}

	res, err := env.engine.Activate(r.criteria)
	if err != nil {
		return fmt.Errorf("activate: %v (%v)", err, res)
	}
	if res == stage.RequiredReboot {
		fmt.Printf("Staged image pending; reboot the device to apply\n")
	}
	return nil
}
