package council

// Event types emitted during a streaming turn, in strict chronological
// order. Consumers must ignore unknown types for forward compatibility.
const (
	EventSearchStart    = "search_start"
	EventSearchComplete = "search_complete"
	EventStage1Start    = "stage1_start"
	EventStage1Complete = "stage1_complete"
	EventStage2Start    = "stage2_start"
	EventStage2Complete = "stage2_complete"
	EventStage3Start    = "stage3_start"
	EventStage3Complete = "stage3_complete"
	EventTitleComplete  = "title_complete"
	EventComplete       = "complete"
	EventError          = "error"
)

// Event is one progress notification of a streaming turn.
type Event struct {
	Type     string        `json:"type"`
	Data     any           `json:"data,omitempty"`
	Metadata *TurnMetadata `json:"metadata,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// SearchStartData is the payload of a search_start event.
type SearchStartData struct {
	Provider string `json:"provider"`
}

// SearchCompleteData is the payload of a search_complete event.
type SearchCompleteData struct {
	SearchQuery   string `json:"search_query"`
	SearchContext string `json:"search_context"`
	Provider      string `json:"provider"`
}

// TitleData is the payload of a title_complete event.
type TitleData struct {
	Title string `json:"title"`
}

// Sink receives events in emission order. A sink error (typically a
// disconnected consumer) stops the event sequence; in-flight provider calls
// still run to completion.
type Sink func(Event) error

// emitter serializes progress into ordered events and goes silent after the
// first sink failure or terminal error event.
type emitter struct {
	sink Sink
	dead bool
}

func (e *emitter) emit(ev Event) error {
	if e.dead {
		return nil
	}
	if err := e.sink(ev); err != nil {
		e.dead = true
		return err
	}
	if ev.Type == EventError {
		e.dead = true
	}
	return nil
}
