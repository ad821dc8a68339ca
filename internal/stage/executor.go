package stage

import "context"

// Request is the input handed to an executor. Executors receive copies and
// never see the state store.
type Request struct {
	Identity   string
	SourcePath string
	Intake     Intake
	// Artifacts holds the locations recorded by prerequisite stages.
	Artifacts map[Stage]string
	Metadata  map[string]string
}

// Artifact returns the recorded location for s.
func (r Request) Artifact(s Stage) (string, bool) {
	loc, ok := r.Artifacts[s]
	return loc, ok && loc != ""
}

// AudioPath returns the audio file the item's stages operate on: the entry
// stage's artifact when one was recorded, otherwise the source file.
func (r Request) AudioPath() string {
	if entry, ok := r.Intake.EntryStage(); ok {
		if loc, ok := r.Artifact(entry); ok {
			return loc
		}
	}
	return r.SourcePath
}

// Result is the outcome of one stage execution: either an artifact location
// (possibly empty) plus metadata, or an error.
type Result struct {
	Artifact string
	Metadata map[string]string
	Err      error
}

// Succeeded builds a successful Result.
func Succeeded(artifact string, metadata map[string]string) Result {
	return Result{Artifact: artifact, Metadata: metadata}
}

// Failed builds a failed Result.
func Failed(err error) Result {
	return Result{Err: err}
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Executor runs one stage for one item.
type Executor interface {
	Execute(ctx context.Context, req Request) Result
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) Result

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) Result { return f(ctx, req) }

// HealthChecker is implemented by executors that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}
