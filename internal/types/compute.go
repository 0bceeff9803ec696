package types

// Tag is one name/value pair attached to a compute-process request or carried
// on a result message. Tag order is significant: callers MUST pass tags in a
// stable order because cache and dedup keys are derived from the ordered list.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is one entry of a compute-process result. Data holds the (possibly
// empty) JSON payload; Tags carry the named scalar outputs.
type Message struct {
	Data string `json:"Data,omitempty"`
	Tags []Tag  `json:"Tags"`
}

// CallResult is the settled output of a compute-process call, either a
// read-only query or an awaited signed submission.
type CallResult struct {
	Messages []Message `json:"Messages"`
}

// Tag returns the value of the named tag on the first message, and whether it
// was present. Absence of an expected tag is the caller's error to handle.
func (r CallResult) Tag(name string) (string, bool) {
	if len(r.Messages) == 0 {
		return "", false
	}
	for _, t := range r.Messages[0].Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// FirstData returns the Data payload of the first message, or "".
func (r CallResult) FirstData() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].Data
}
