package types

// Event represents a typed event emitted by a contract during a transaction.
type Event struct {
	Contract   Principal         `json:"contract"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Contract: e.Contract, Type: e.Type, Attributes: attrs}
}
