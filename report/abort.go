package report

import "fmt"

// Step names a pipeline stage, recorded as the failing step of a job.
type Step string

const (
	StepLoad      Step = "load"
	StepFetch     Step = "fetch"
	StepExtract   Step = "extract"
	StepNormalize Step = "normalize"
	StepUpsert    Step = "upsert"
	StepImages    Step = "images"
	StepReconcile Step = "reconcile"
)

// Abort is a run-level failure: the run stops and the job is marked failed.
type Abort struct {
	Step  Step
	Cause error
}

// NewAbort wraps cause as a failure of step. A nil cause returns nil.
func NewAbort(step Step, cause error) error {
	if cause == nil {
		return nil
	}
	return &Abort{Step: step, Cause: cause}
}

func (a *Abort) Error() string {
	return fmt.Sprintf("%s: %v", a.Step, a.Cause)
}

func (a *Abort) Unwrap() error {
	return a.Cause
}
