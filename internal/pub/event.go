package pub

// Event represents a typed domain event that can be published as a Message.
type Event struct {
	// Type identifies the kind of event (e.g., "order.created", "user.updated")
	Type string `json:"type"`
	// Payload contains the event data, can be any JSON-serializable structure
	Payload any `json:"payload"`
}

// Message converts the event into a publishable message. The event type is
// always carried as the "event" attribute alongside attrs.
func (e Event) Message(attrs map[string]string) Message {
	a := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		a[k] = v
	}
	a["event"] = e.Type

	return Message{
		"type":        e.Type,
		"payload":     e.Payload,
		AttributesKey: a,
	}
}
