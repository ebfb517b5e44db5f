// Package event defines the integration events exchanged over the message bus.
// Field names are the wire contract; unknown fields are ignored on decode.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything publishable on the bus. The routing key is the bare type name.
type Event interface {
	RoutingKey() string
	Metadata() Meta
}

// Meta is carried by every event.
type Meta struct {
	EventID       string    `json:"eventId"`
	OccurredAtUTC time.Time `json:"occurredAtUtc"`
	CorrelationID string    `json:"correlationId"`
}

// NewMeta stamps a fresh id and the current UTC time.
func NewMeta(correlationID string) Meta {
	return Meta{
		EventID:       uuid.NewString(),
		OccurredAtUTC: time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// Metadata returns the shared envelope.
func (m Meta) Metadata() Meta { return m }

const (
	DocumentUploadedKey    = "DocumentUploaded"
	ChatMessageCreatedKey  = "ChatMessageCreated"
	AiResponseGeneratedKey = "AiResponseGenerated"
)

// DocumentUploaded announces a file ready for ingestion.
type DocumentUploaded struct {
	Meta
	ProjectID  uuid.UUID `json:"projectId"`
	DocumentID uuid.UUID `json:"documentId"`
	FilePath   string    `json:"filePath"`
}

func (DocumentUploaded) RoutingKey() string { return DocumentUploadedKey }

// ChatMessageCreated carries a user question.
type ChatMessageCreated struct {
	Meta
	ProjectID     uuid.UUID `json:"projectId"`
	ChatMessageID uuid.UUID `json:"chatMessageId"`
	Content       string    `json:"content"`
}

func (ChatMessageCreated) RoutingKey() string { return ChatMessageCreatedKey }

// AiResponseGenerated carries the answer to a ChatMessageCreated.
type AiResponseGenerated struct {
	Meta
	ProjectID           uuid.UUID   `json:"projectId"`
	SourceChatMessageID uuid.UUID   `json:"sourceChatMessageId"`
	Answer              string      `json:"answer"`
	TokenUsage          int         `json:"tokenUsage"`
	SourceChunkIDs      []uuid.UUID `json:"sourceChunkIds"`
}

func (AiResponseGenerated) RoutingKey() string { return AiResponseGeneratedKey }
