package events

// TypeRequestsChanged is sent after a request was created or modified.
const TypeRequestsChanged = "requests.changed"

// Event is the message pushed to watchers over the events websocket.
type Event struct {
	Type string `json:"type"`
	// ID is the request that changed, 0 when unknown.
	ID int64 `json:"id,omitempty"`
}

// RequestsChanged builds the event announcing a change to request id.
func RequestsChanged(id int64) Event {
	return Event{Type: TypeRequestsChanged, ID: id}
}
