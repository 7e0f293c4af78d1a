// Package optimistic implements the like/save toggle state machine.
//
//	Off --toggle--> PendingOn --ok--> On
//	                          --err-> Off (pre-toggle count restored)
//	On  --toggle--> PendingOff --ok--> Off
//	                           --err-> On (pre-toggle count restored)
package optimistic

// State is the position of one toggle in the state machine.
type State int

const (
	Off State = iota
	PendingOn
	On
	PendingOff
)

func (s State) String() string {
	switch s {
	case PendingOn:
		return "pending_on"
	case On:
		return "on"
	case PendingOff:
		return "pending_off"
	default:
		return "off"
	}
}

// Flag is the relationship flag a user sees in this state.
func (s State) Flag() bool {
	return s == On || s == PendingOn
}

// Pending reports whether a request is outstanding.
func (s State) Pending() bool {
	return s == PendingOn || s == PendingOff
}

// StateOf maps a settled flag to its state.
func StateOf(flag bool) State {
	if flag {
		return On
	}
	return Off
}

// Toggle is a toggle's current display values plus the snapshot it reverts to.
type Toggle struct {
	State State
	// Count is the displayed counter. Only meaningful when Counted.
	Count   int
	Counted bool

	prevState State
	prevCount int
}

// Outcome is the result of the toggle's request. Count and Flag are set when
// the server reported them.
type Outcome struct {
	Err   error
	Count *int
	Flag  *bool
}

// Begin flips a settled relationship into its pending state. For counted
// relationships the count moves by one and never drops below zero.
func Begin(flag bool, count int, counted bool) Toggle {
	t := Toggle{
		Counted:   counted,
		prevState: StateOf(flag),
		prevCount: count,
		Count:     count,
	}
	if flag {
		t.State = PendingOff
		if counted {
			t.Count = max(count-1, 0)
		}
	} else {
		t.State = PendingOn
		if counted {
			t.Count = count + 1
		}
	}
	return t
}

// Settle resolves a pending toggle. Failure restores the exact pre-toggle
// snapshot; success lands on the target state, adopting server-reported values.
// A server-reported count makes the toggle counted.
// Settling a toggle that is not pending returns it unchanged.
func Settle(t Toggle, out Outcome) Toggle {
	if !t.State.Pending() {
		return t
	}
	settled := t
	if out.Err != nil {
		settled.State = t.prevState
		settled.Count = t.prevCount
		return settled
	}

	settled.State = StateOf(t.State == PendingOn)
	if out.Flag != nil {
		settled.State = StateOf(*out.Flag)
	}
	if out.Count != nil {
		settled.Count = *out.Count
		settled.Counted = true
	}
	settled.Count = max(settled.Count, 0)
	return settled
}

// Previous returns the snapshot a failed settle reverts to.
func (t Toggle) Previous() (flag bool, count int) {
	return t.prevState.Flag(), t.prevCount
}
