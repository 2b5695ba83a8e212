package engine

// ActionState is the deferred-refresh latch around wrapped actions.
type ActionState int

const (
	Idle ActionState = iota
	Executing
	ExecutingWithPendingRefresh
)

func (s ActionState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Executing:
		return "Executing"
	case ExecutingWithPendingRefresh:
		return "ExecutingWithPendingRefresh"
	}
	return "Unknown"
}

// latch is owned by the mailbox goroutine.
//
// Idle -> Executing on begin; Executing -> ExecutingWithPendingRefresh on
// defer (saturating); either executing state -> Idle on end, which reports
// whether a refresh was pending. The pending bit cannot outlive the action.
type latch struct {
	state ActionState
}

func (l *latch) executing() bool {
	return l.state != Idle
}

func (l *latch) pending() bool {
	return l.state == ExecutingWithPendingRefresh
}

// begin starts an action. It fails if one is already running.
func (l *latch) begin() bool {
	if l.state != Idle {
		return false
	}
	l.state = Executing
	return true
}

// deferRefresh records a refresh request while an action runs.
func (l *latch) deferRefresh() bool {
	if l.state == Idle {
		return false
	}
	l.state = ExecutingWithPendingRefresh
	return true
}

// end leaves the executing states and consumes the pending flag.
func (l *latch) end() (refresh bool) {
	refresh = l.state == ExecutingWithPendingRefresh
	l.state = Idle
	return refresh
}
