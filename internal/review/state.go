package review

// LoadState is the explicit finite-state machine behind a gather cycle,
// replacing ad-hoc loading/error flags. Aggregation only runs on Loaded;
// a snapshot mid-gather must never reach the percentage math.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadLoaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "idle"
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoadEvent drives the reducer.
type LoadEvent int

const (
	EventFetch   LoadEvent = iota // a gather cycle started
	EventSettled                  // every constituent fetch settled
	EventError                    // a required fetch failed
	EventReset
)

// Reduce is the single transition function. Illegal events leave the state
// unchanged, so a late settle after an error cannot flip Failed to Loaded.
func Reduce(s LoadState, e LoadEvent) LoadState {
	switch e {
	case EventFetch:
		if s == LoadIdle || s == LoadLoaded || s == LoadFailed {
			return LoadLoading
		}
	case EventSettled:
		if s == LoadLoading {
			return LoadLoaded
		}
	case EventError:
		if s == LoadLoading {
			return LoadFailed
		}
	case EventReset:
		return LoadIdle
	}
	return s
}

// Ready reports whether a snapshot in this state may be aggregated.
func (s LoadState) Ready() bool { return s == LoadLoaded }
