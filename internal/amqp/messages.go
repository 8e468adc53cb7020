package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseCreatedMessage announces a newly recorded expense. It carries
// only the id and owner; the worker fetches the full row from storage so
// the queue never holds monetary data.
type ExpenseCreatedMessage struct {
	Username  string    `json:"username"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseCreatedMessage(username string, id int64) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		Username:  username,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
