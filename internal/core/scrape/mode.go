package scrape

import "fmt"

// Mode selects how a scrape request is answered.
type Mode string

const (
	// ModeSync blocks until the posts are available.
	ModeSync Mode = "sync"
	// ModeStream blocks like ModeSync while forwarding worker output.
	ModeStream Mode = "stream"
	// ModeAsync acknowledges immediately and stores the posts when done.
	ModeAsync Mode = "async"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSync, ModeStream, ModeAsync:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}
