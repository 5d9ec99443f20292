// Binary fwstage drives the firmware staging engine from the command line:
// staging images into the secondary slot of a device profile, activating
// them for the next boot, and running the boot-time recovery routine.
package main

import (
	// Embed CA root certificates so HTTPS downloads work in static
	// binaries on systems without a certificate store.
	_ "github.com/breml/rootcerts"

	"github.com/mcustage/fwstage/internal/cli"
)

func main() {
	cli.Execute()
}
