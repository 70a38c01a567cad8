package domain

import "time"

type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageReplied MessageStatus = "replied"
)

type Message struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name" validate:"required,max=100"`
	Email     string        `json:"email" validate:"required,email"`
	Subject   string        `json:"subject,omitempty" validate:"max=200"`
	Message   string        `json:"message" validate:"required,max=5000"`
	Status    MessageStatus `json:"status"`
	Response  string        `json:"response,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	RepliedAt *time.Time    `json:"repliedAt,omitempty"`
}
