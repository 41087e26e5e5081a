// internal/solver/outcome.go
// Package: solver
package solver

// Outcome is the category a trial falls into, derived from the solver's exit status.
type Outcome int

const (
	Draw Outcome = iota
	Loss
	Win
	Error
)

// Exit statuses agreed with the solver. Any other status is an Error outcome.
const (
	ExitDraw = 0
	ExitLoss = 1
	ExitWin  = 2
)

// Classify maps a raw exit status to its outcome. It is total: every status that is
// not 0, 1 or 2 (negative, signal-terminated, ExitInvocationError) is an Error.
func Classify(status int) Outcome {
	switch status {
	case ExitDraw:
		return Draw
	case ExitLoss:
		return Loss
	case ExitWin:
		return Win
	default:
		return Error
	}
}

// String returns the lower-case outcome name used in CSV headers and metrics labels.
func (o Outcome) String() string {
	switch o {
	case Draw:
		return "draw"
	case Loss:
		return "loss"
	case Win:
		return "win"
	default:
		return "error"
	}
}

// Letter returns the one-letter tag printed in run logs.
func (o Outcome) Letter() string {
	switch o {
	case Draw:
		return "D"
	case Loss:
		return "L"
	case Win:
		return "W"
	default:
		return "E"
	}
}

// MarshalText lets outcomes appear by name in JSON manifests.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Outcomes lists every category in report column order.
func Outcomes() []Outcome {
	return []Outcome{Win, Loss, Draw, Error}
}
