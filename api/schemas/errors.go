package schemas

import "errors"

// Error taxonomy shared by the probe, executor and orchestrator. Absence of an
// affordance is represented in ProbeResult/StepOutcome values, never as an
// error; these sentinels cover the cases that must propagate.
var (
	// ErrUnreachable marks navigation or query-mechanism failures. Fatal to
	// the enclosing workflow.
	ErrUnreachable = errors.New("target unreachable")

	// ErrPostconditionViolated marks an action whose expected observable
	// effect did not occur within its bound. A hard failure: either a
	// functional bug in the app under test or a broken assumption.
	ErrPostconditionViolated = errors.New("postcondition violated")

	// ErrDeadlineExceeded marks a workflow that ran out of its overall
	// deadline between steps.
	ErrDeadlineExceeded = errors.New("workflow deadline exceeded")
)
