package engine

import (
	"math/rand"
	"strings"
	"sync"
)

// criticalPackages are never removed; the system does not survive
// without them.
var criticalPackages = map[string]bool{
	"glibc":             true,
	"linux":             true,
	"coreutils":         true,
	"bash":              true,
	"systemd":           true,
	"util-linux":        true,
	"linux-zen":         true,
	"linux-api-headers": true,
	"dracut":            true,
	"linux-zen-headers": true,
	"sh":                true,
}

var criticalMessages = []string{
	"Hey! Psst! Look up what removing {pkg} will do to your system.",
	"This is NOT the French language pack. ({pkg})",
	"Are you sure you're not trying to uninstall the operating system? ({pkg})",
	"Removing {pkg} will end your computing career.",
	"{pkg} is holding your system together... barely.",
	"Whoever told you to remove {pkg} hates you with a passion.",
	"Don't do it! Seriously, just don't. ({pkg})",
	"{pkg}? Really?",
	"How about we dont delete {pkg}? Hm?",
}

const selfRemovalMessage = "Removing Me? That's like tearing out the very soul of your system. I can't believe you'd do something like this!"

// IsCritical reports whether name is on the critical allow-list.
func IsCritical(name string) bool {
	return criticalPackages[name]
}

var (
	messageMu      sync.Mutex
	messageHistory []int
)

// CriticalMessage picks a cautionary message for the package, avoiding
// the five most recently used ones. Removing starpack itself gets a
// dedicated message.
func CriticalMessage(name string) string {
	if name == "starpack" {
		return selfRemovalMessage
	}

	messageMu.Lock()
	defer messageMu.Unlock()

	inHistory := func(i int) bool {
		for _, h := range messageHistory {
			if h == i {
				return true
			}
		}
		return false
	}

	var candidates []int
	for i := range criticalMessages {
		if !inHistory(i) {
			candidates = append(candidates, i)
		}
	}

	var idx int
	if len(candidates) > 0 {
		idx = candidates[rand.Intn(len(candidates))]
	} else {
		idx = rand.Intn(len(criticalMessages))
	}

	messageHistory = append(messageHistory, idx)
	if len(messageHistory) > 5 {
		messageHistory = messageHistory[1:]
	}

	return strings.ReplaceAll(criticalMessages[idx], "{pkg}", name)
}
