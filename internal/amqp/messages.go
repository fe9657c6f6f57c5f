package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Event types carried on the queue.
const (
	EventExpenseChanged = "expense.changed"
	EventAccountDeleted = "account.deleted"
)

// UserEventMessage tells the worker that a user's data changed. It carries
// only identifiers; the worker reads current state from the store.
type UserEventMessage struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserEventMessage creates an event stamped with the current time.
func NewUserEventMessage(eventType, userID, expenseID string) *UserEventMessage {
	return &UserEventMessage{
		Type:      eventType,
		UserID:    userID,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *UserEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UserEventMessageFromJSON decodes and checks a message body.
func UserEventMessageFromJSON(data []byte) (*UserEventMessage, error) {
	var msg UserEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventExpenseChanged, EventAccountDeleted:
	default:
		return nil, errors.New("unknown event type: " + msg.Type)
	}
	if msg.UserID == "" {
		return nil, errors.New("event without user_id")
	}
	return &msg, nil
}
