package payday

import "fmt"

// Stage counts the completed stages of a payday run. It is persisted on the
// payday row so an interrupted run resumes exactly where it stopped.
type Stage int

const (
	// StageNotStarted means the payin stage has not completed.
	StageNotStarted Stage = iota
	// StagePayinDone means balances are settled and committed.
	StagePayinDone
	// StageStatsDone means run statistics have been aggregated.
	StageStatsDone
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageNotStarted:
		return "not-started"
	case StagePayinDone:
		return "payin-done"
	case StageStatsDone:
		return "stats-done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Valid reports whether the stage is a known value.
func (s Stage) Valid() bool {
	return s >= StageNotStarted && s <= StageStatsDone
}
