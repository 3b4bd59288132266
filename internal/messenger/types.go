// Package messenger implements the Facebook Messenger surface: webhook
// verification, inbound event parsing and outbound sends via the Graph API.
package messenger

import "time"

// WebhookEvent is the top-level payload Meta posts to the webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one page entry inside a webhook event.
type Entry struct {
	ID        string            `json:"id"`
	Time      int64             `json:"time"`
	Messaging []MessagingDetail `json:"messaging"`
}

// MessagingDetail is one messaging item inside an entry.
type MessagingDetail struct {
	Sender    Participant     `json:"sender"`
	Recipient Participant     `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *InboundMessage `json:"message,omitempty"`
}

// Participant identifies a messaging participant by page-scoped ID.
type Participant struct {
	ID string `json:"id"`
}

// InboundMessage is the message body of a messaging item.
type InboundMessage struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a non-text payload (image, audio, sticker, ...).
type Attachment struct {
	Type string `json:"type"`
}

// ParsedMessage is one inbound user message in a form the bot engine
// consumes.
type ParsedMessage struct {
	SenderID      string
	Text          string
	MessageID     string
	HasAttachment bool
	Time          time.Time
}

// SendRequest is the Graph API send payload.
type SendRequest struct {
	Recipient    Participant  `json:"recipient"`
	Message      *SendMessage `json:"message,omitempty"`
	SenderAction string       `json:"sender_action,omitempty"`
}

// SendMessage is the outbound message body.
type SendMessage struct {
	Text string `json:"text"`
}

// SendResponse is the Graph API send result.
type SendResponse struct {
	RecipientID string     `json:"recipient_id"`
	MessageID   string     `json:"message_id"`
	Error       *SendError `json:"error,omitempty"`
}

// SendError is the Graph API error envelope.
type SendError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Sender actions supported by the Graph API.
const (
	ActionTypingOn  = "typing_on"
	ActionTypingOff = "typing_off"
	ActionMarkSeen  = "mark_seen"
)
