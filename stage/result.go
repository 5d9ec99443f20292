package stage

// Result is the closed set of outcomes reported to the caller-facing
// operations.
type Result int

const (
	Success Result = iota
	InProgress
	RequiredReboot
	Failure
	Cancelled
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case InProgress:
		return "in progress"
	case RequiredReboot:
		return "reboot required"
	case Failure:
		return "failure"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}
