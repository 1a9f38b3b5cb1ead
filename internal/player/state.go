// internal/player/state.go
package player

// State is the lifecycle of one streaming loop.
//
//	┌──────┐  start   ┌─────────┐  exhausted  ┌──────────┐
//	│ Idle │ ───────▶ │ Running │ ──────────▶ │ Finished │
//	└──────┘          └─────────┘             └──────────┘
//	   │                 │   │
//	   │ stop       stop │   │ render/write error
//	   ▼                 ▼   ▼
//	┌─────────┐      ┌────────┐
//	│ Stopped │ ◀─── │ Failed │ (terminal)
//	└─────────┘      └────────┘
//
// Finished, Stopped and Failed are terminal: a loop runs at most once.
type State int32

const (
	Idle State = iota
	Running
	Finished
	Stopped
	Failed
)

// String returns the state name for debugging.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal returns true once the loop has exited.
func (s State) IsTerminal() bool {
	return s == Finished || s == Stopped || s == Failed
}
