package review

import "testing"

func TestReduceHappyPath(t *testing.T) {
	s := Reduce(LoadIdle, EventFetch)
	if s != LoadLoading {
		t.Fatalf("after fetch: %s, want loading", s)
	}
	s = Reduce(s, EventSettled)
	if s != LoadLoaded || !s.Ready() {
		t.Fatalf("after settle: %s, want loaded/ready", s)
	}
}

func TestReduceErrorIsSticky(t *testing.T) {
	s := Reduce(LoadIdle, EventFetch)
	s = Reduce(s, EventError)
	if s != LoadFailed {
		t.Fatalf("after error: %s, want failed", s)
	}
	// a late settle must not flip a failed gather to loaded
	if got := Reduce(s, EventSettled); got != LoadFailed {
		t.Fatalf("late settle: %s, want failed", got)
	}
	if s.Ready() {
		t.Fatal("failed state must not be ready")
	}
}

func TestReduceIllegalEventsNoOp(t *testing.T) {
	if got := Reduce(LoadIdle, EventSettled); got != LoadIdle {
		t.Fatalf("settle from idle: %s, want idle", got)
	}
	if got := Reduce(LoadIdle, EventError); got != LoadIdle {
		t.Fatalf("error from idle: %s, want idle", got)
	}
}

func TestReduceRefetchAndReset(t *testing.T) {
	s := Reduce(Reduce(LoadIdle, EventFetch), EventSettled)
	if got := Reduce(s, EventFetch); got != LoadLoading {
		t.Fatalf("refetch from loaded: %s, want loading", got)
	}
	failed := Reduce(Reduce(LoadIdle, EventFetch), EventError)
	if got := Reduce(failed, EventFetch); got != LoadLoading {
		t.Fatalf("retry from failed: %s, want loading", got)
	}
	if got := Reduce(failed, EventReset); got != LoadIdle {
		t.Fatalf("reset: %s, want idle", got)
	}
}
