package payment

// CaptureOutcome is the explicit result of a capture attempt. Compensation
// is a visible branch of the workflow, not a caught exception.
type CaptureOutcome int

const (
	// OutcomeSuccess: the authorization was captured and the payment finalized.
	OutcomeSuccess CaptureOutcome = iota
	// OutcomeRolledBack: the processor rejected the capture; payment and
	// booking were deleted.
	OutcomeRolledBack
	// OutcomeFailed: the processor call itself failed; payment and booking
	// were deleted.
	OutcomeFailed
)

func (o CaptureOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (o CaptureOutcome) Succeeded() bool {
	return o == OutcomeSuccess
}
