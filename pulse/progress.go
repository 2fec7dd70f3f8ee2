// Package pulse groups the job orchestration infrastructure: the integration
// job queue (async), cross-process coordination (coord) and the periodic
// ticker (schedule).
package pulse

// ProgressEmitter receives stage progress while a run executes. The CLI
// renders it; workers use NopEmitter and rely on logs.
type ProgressEmitter interface {
	// EmitStage announces the start of a pipeline stage
	EmitStage(stage string, message string)

	// EmitProgress reports done out of total items of the current stage
	EmitProgress(done, total int)

	// EmitComplete announces a finished run with its summary counts
	EmitComplete(summary map[string]interface{})

	// EmitError announces the stage a run failed in
	EmitError(stage string, err error)
}

// NopEmitter discards progress.
type NopEmitter struct{}

func (NopEmitter) EmitStage(string, string) {}
func (NopEmitter) EmitProgress(int, int) {}
func (NopEmitter) EmitComplete(map[string]interface{}) {}
func (NopEmitter) EmitError(string, error) {}
