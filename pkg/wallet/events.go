package wallet

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventSessionUpdated    EventType = "session_updated"
	EventSelectionUpdated  EventType = "selection_updated"
	EventBalanceUpdated    EventType = "balance_updated"
	EventTransferConfirmed EventType = "transfer_confirmed"
	EventNotification      EventType = "notification"
)

// Event represents a change in wallet state.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Notification is a transient, user-facing message.
type Notification struct {
	Level    string `json:"level"` // "error" or "info"
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
