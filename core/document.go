package core

import "github.com/google/uuid"

// Document is a context item handed to the model alongside the conversation.
// Static documents are configured on an agent; retrieved documents carry the
// similarity Score reported by the retriever.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewDocument creates a document with a generated id.
func NewDocument(content string) Document {
	return Document{ID: NewID(), Content: content}
}

// NewID returns a random UUID string.
func NewID() string { return uuid.NewString() }
