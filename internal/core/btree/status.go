package btree

// Status is the control-flow value produced by every node evaluation. Statuses are
// never errors: they are returned, not raised.
type Status uint8

const (
	// StatusInactive marks a node that has not run since its last reset.
	StatusInactive Status = iota
	StatusRunning
	StatusSuccess
	StatusFailure
	// StatusAborted is injected by the abort protocol; leaves never produce it.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "Inactive"
	case StatusRunning:
		return "Running"
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusAborted:
		return "Aborted"
	default:
		return "Invalid"
	}
}

// Terminal reports whether s ends a node's activation.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusAborted
}

// CursorState is the observable state of a composite's child cursor.
type CursorState uint8

const (
	CursorBeforeFirstChild CursorState = iota
	CursorAtChild
	CursorExhausted
)

func (c CursorState) String() string {
	switch c {
	case CursorBeforeFirstChild:
		return "BeforeFirstChild"
	case CursorAtChild:
		return "AtChild"
	case CursorExhausted:
		return "Exhausted"
	default:
		return "Invalid"
	}
}
