package pipeline

// EventKind tags a pipeline event.
type EventKind string

const (
	EventStepStart    EventKind = "step_start"
	EventStepComplete EventKind = "step_complete"
	EventError        EventKind = "error"
	EventComplete     EventKind = "complete"
)

// Event is one entry of a run's ordered event stream. Output carries only
// the completed stage's incremental result; State is set on terminal events.
type Event struct {
	Kind    EventKind `json:"type"`
	Step    StepName  `json:"step,omitempty"`
	Output  any       `json:"output,omitempty"`
	Message string    `json:"message,omitempty"`
	State   *State    `json:"finalState,omitempty"`
	Err     error     `json:"-"` // set on error events; a *StepError unless input validation failed
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventError || e.Kind == EventComplete
}

func stepStart(step StepName) Event { return Event{Kind: EventStepStart, Step: step} }

func stepComplete(step StepName, out any) Event {
	return Event{Kind: EventStepComplete, Step: step, Output: out}
}

func errorEvent(step StepName, err error, st *State) Event {
	return Event{Kind: EventError, Step: step, Message: err.Error(), State: st, Err: err}
}

func completeEvent(st *State) Event { return Event{Kind: EventComplete, State: st} }
