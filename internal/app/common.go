package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sfg-os/starpack/internal/engine"
)

var (
	installDir string
	assumeYes  bool
)

// newEngine builds an Engine for the chosen install root. Callers own
// the Close.
func newEngine() *engine.Engine {
	return engine.New(installDir, engine.WithAssumeYes(assumeYes))
}

// requireRoot guards commands that modify the system.
func requireRoot(cmd *cobra.Command, _ []string) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("the '%s' command must be run as root", cmd.Name())
	}
	return nil
}
