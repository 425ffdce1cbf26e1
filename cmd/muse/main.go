// Command muse runs the Muse backend and talks to a running server's
// waitlist API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "muse",
		Short:        "Muse fashion discovery backend",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newWaitlistCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
