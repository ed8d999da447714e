package harness

// TraceEvent records one step status transition, in the order the engine
// reported it.
type TraceEvent struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ItemState is one entry of the final list array.
type ItemState struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Result captures a scenario run: the full step transition trace and the
// final durable state of the scripted ledger.
type Result struct {
	Scenario string `json:"scenario"`

	// Outcome is "complete" when every plan step succeeded, "halted" otherwise.
	Outcome string `json:"outcome"`

	Trace []TraceEvent `json:"trace"`

	PrimaryTopic string `json:"primary_topic,omitempty"`
	ListTopic    string `json:"list_topic,omitempty"`

	// Items is the list topic's final array.
	Items []ItemState `json:"items,omitempty"`

	// Profile maps list kind names to the topic ids the profile record ended
	// up pointing at. Only set fields appear.
	Profile map[string]string `json:"profile,omitempty"`
}
