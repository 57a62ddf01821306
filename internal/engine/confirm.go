package engine

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrAborted is returned when the user declines a confirmation prompt.
var ErrAborted = errors.New("operation aborted by user")

// confirm lists the affected packages and asks for a yes/no answer on
// stdin. An empty answer counts as yes. WithAssumeYes skips the
// prompt.
func (e *Engine) confirm(action string, names []string) bool {
	fmt.Printf("\nPackages to %s (%d):\n", action, len(names))
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	if e.assumeYes {
		return true
	}

	fmt.Print("\nDo you want to continue? [Y/n] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}
