package progress

import "time"

// Stage identifies which pipeline stage is active.
type Stage string

const (
	StageIngest   Stage = "ingest"
	StageIndex    Stage = "index"
	StageGenerate Stage = "generate"
	StageComplete Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage   Stage
	Message string
	Percent float64 // 0.0–1.0
	Current int
	Total   int
	Elapsed time.Duration
	Error   error
	// OutputFile is set on StageComplete with the saved quiz path.
	OutputFile string
	// Questions is the number of questions in the saved quiz, set on StageComplete.
	Questions int
	// Shortfall is set on StageComplete when fewer questions than requested were produced.
	Shortfall bool
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}

// Recorder collects events in order. It is handy as a reporting sink in tests
// and for callers that want to inspect the summary lines after a run.
type Recorder struct {
	Events []Event
}

// Handle satisfies the Callback type.
func (r *Recorder) Handle(e Event) {
	r.Events = append(r.Events, e)
}

// Messages returns the recorded event messages in order.
func (r *Recorder) Messages() []string {
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Message)
	}
	return out
}
