package pipeline

// Event names emitted while an upload is processed. For a successful upload
// the order is fixed: status events for auth/validation/upload, one
// processing_started, page_progress per page in ascending order, a final
// extraction status, audio_generation_started once all jobs are queued, and
// exactly one terminal completed or error event. Nothing follows a terminal
// event.
const (
	EventStatus                 = "status"
	EventProcessingStarted      = "processing_started"
	EventPageProgress           = "page_progress"
	EventAudioGenerationStarted = "audio_generation_started"
	EventCompleted              = "completed"
	EventError                  = "error"
)

// Event is one frame of the upload progress stream.
type Event struct {
	Name string
	Data map[string]any
}

// Emitter consumes progress events. The stream is narration only: the
// ledger reaches the same end state whether or not anything listens.
type Emitter interface {
	Emit(event Event)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}

// Recorder collects events in order, for tests and diagnostics.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) {
	r.Events = append(r.Events, e)
}

// StatusEvent builds a plain narration event.
func StatusEvent(message string) Event {
	return Event{Name: EventStatus, Data: map[string]any{"message": message}}
}

// ErrorEvent builds the terminal error frame.
func ErrorEvent(detail string) Event {
	return Event{Name: EventError, Data: map[string]any{"error": detail}}
}
