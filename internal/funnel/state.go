package funnel

import "github.com/yanizio/geofunnel/internal/scenario"

// Step is a funnel position.  Values only ever increase within one
// traversal; /start and a successful verification are the only ways back
// to the beginning.
type Step int

const (
	AwaitingVerification Step = iota
	Step1
	Step2
	Step3
	Step4
	Completed
)

func (s Step) String() string {
	switch s {
	case AwaitingVerification:
		return "awaiting_verification"
	case Step1:
		return "step1"
	case Step2:
		return "step2"
	case Step3:
		return "step3"
	case Step4:
		return "step4"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Number is the 1-based index of an informational step, 0 otherwise.
func (s Step) Number() int {
	if s >= Step1 && s <= Step4 {
		return int(s - Step1 + 1)
	}
	return 0
}

// Session is the in-memory state of one traversal.  An identity with no
// Session is in AwaitingVerification.
type Session struct {
	Step   Step
	Region string          // verified region code
	Bundle scenario.Bundle // copy captured at verification
}
