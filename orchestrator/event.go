package orchestrator

import (
	"fmt"
	"time"
)

// EventKind classifies orchestrator events.
type EventKind int

const (
	EventDiscovered EventKind = iota
	EventBuildStarted
	EventBuildSucceeded
	EventBuildFailed
	EventBundleSucceeded
	EventBundleFailed
	EventServing
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventDiscovered:
		return "discovered"
	case EventBuildStarted:
		return "build-started"
	case EventBuildSucceeded:
		return "build-succeeded"
	case EventBuildFailed:
		return "build-failed"
	case EventBundleSucceeded:
		return "bundle-succeeded"
	case EventBundleFailed:
		return "bundle-failed"
	case EventServing:
		return "serving"
	case EventStopped:
		return "stopped"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event reports progress to an observer such as the watch dashboard.
type Event struct {
	Time     time.Time
	Err      error
	Package  string
	Address  string
	Duration time.Duration
	Kind     EventKind
	Renames  int
}
