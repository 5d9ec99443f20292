package cli

import (
	"fmt"
	"os"

	"github.com/mcustage/fwstage/boot"
	"github.com/mcustage/fwstage/internal/devflag"
	"github.com/spf13/cobra"
)

// statusCmd is fwstage status.
var statusCmd = &cobra.Command{
	GroupID: "inspect",
	Use:     "status",
	Short:   "Show the upgrade state record and slot flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}
		return statusImpl.run()
	},
}

type statusImplConfig struct {
	criteria string
}

var statusImpl statusImplConfig

func init() {
	devflag.RegisterPflags(statusCmd.Flags())
	statusCmd.Flags().StringVar(&statusImpl.criteria, "criteria", "", "also report whether this installed criteria is settled")
}

func (r *statusImplConfig) run() error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	if hdr, err := env.loader.ActiveHeader(); err == nil {
		fmt.Printf("Active image version:   %s\n", hdr.Version)
	} else {
		fmt.Printf("Active image:           unreadable (%v)\n", err)
	}

	if v, ok := env.state.StageVersion(); ok {
		fmt.Printf("Stage version:          %s\n", v)
	} else {
		fmt.Printf("Stage version:          (not set)\n")
	}
	if rebooted, ok := env.state.InstallRebooted(); ok {
		fmt.Printf("Install rebooted:       %t\n", rebooted)
	} else {
		fmt.Printf("Install rebooted:       (not set)\n")
	}
	if c, ok := env.state.StageCriteria(); ok {
		fmt.Printf("Stage criteria:         %q\n", c)
	} else {
		fmt.Printf("Stage criteria:         (not set)\n")
	}
	if c, ok := env.state.PersistentCriteria(); ok {
		fmt.Printf("Persistent criteria:    %q\n", c)
	} else {
		fmt.Printf("Persistent criteria:    (not set)\n")
	}

	for _, slot := range []boot.Slot{boot.Primary, boot.Secondary} {
		if confirmed, err := env.loader.Confirmed(slot); err == nil {
			fmt.Printf("%-23s %t\n", fmt.Sprintf("%s confirmed:", slot), confirmed)
		}
	}
	if pending, err := env.loader.Pending(); err == nil {
		fmt.Printf("Secondary pending:      %t\n", pending)
	}

	if r.criteria != "" {
		installed, err := env.engine.QueryInstalled(r.criteria)
		if err != nil {
			return err
		}
		fmt.Printf("Installed %q: %t\n", r.criteria, installed)
	}
	return nil
}
