package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

// spaceshipArt is printed exactly as stored, colors included.
const spaceshipArt = "\033[1;34m           /\\\033[0m\n" +
	"\033[1;36m          /  \\\033[0m\n" +
	"\033[1;37m         /____\\\033[0m\n" +
	"\033[1;35m        /\\    /\\\033[0m\n" +
	"\033[1;37m       /  \\  /  \\\033[0m\n" +
	"\033[1;36m      /____\\/____\\\033[0m\n" +
	"\033[1;34m     /======[ ]======\\\033[0m\n" +
	"\033[1;36m    ||  ___ [ ] ___  ||\033[0m\n" +
	"\033[1;37m    || |___|| ||___| ||\033[0m\n" +
	"\033[1;35m    /__|         |__\\\033[0m\n" +
	"\033[1;37m   /   \\_________/   \\\033[0m\n" +
	"\033[1;36m  /___________________\\\033[0m\n" +
	"\033[1;34m      /_|       |_\\\033[0m\n" +
	"\033[1;36m     /__|       |__\\\033[0m\n"

var spaceshipCmd = &cobra.Command{
	Use:    "spaceship",
	Short:  "This Star Has Spaceship Powers",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(spaceshipArt)
	},
}
