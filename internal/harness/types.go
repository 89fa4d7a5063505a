package harness

// Trace event types.
const (
	EventJournal   = "journal"
	EventChat      = "chat"
	EventChatError = "chat_error"
	EventCall      = "call"
	EventSignal    = "signal"
)

// TraceEvent is one observable effect of the plugin.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	AtMs int64  `json:"at_ms"`
	Type string `json:"type"`

	// Kind and Name are set for journal entries; Name alone for native calls.
	Kind   string            `json:"kind,omitempty"`
	Name   string            `json:"name,omitempty"`
	Detail map[string]string `json:"detail,omitempty"`

	// Text is the chat message.
	Text string `json:"text,omitempty"`
}

// Labels returns the names an assertion may use for e, most specific last.
func (e TraceEvent) Labels() []string {
	switch {
	case e.Type == EventJournal && e.Name != "":
		return []string{e.Kind, e.Kind + ":" + e.Name}
	case e.Type == EventJournal:
		return []string{e.Kind}
	case e.Name != "":
		return []string{e.Type, e.Type + ":" + e.Name}
	}
	return []string{e.Type}
}

// Matches reports whether label names e.
func (e TraceEvent) Matches(label string) bool {
	for _, l := range e.Labels() {
		if l == label {
			return true
		}
	}
	return false
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every effect in the order it happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final observable state, keyed as in final_state assertions.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
