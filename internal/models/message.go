// Package models defines the normalized incoming message and outbound
// prompt building blocks shared across modules.
package models

import "time"

// MessageKind classifies a normalized incoming message. Classification is
// purely structural; no business meaning is attached here.
type MessageKind string

const (
	// MessageKindText is a plain or extended text message.
	MessageKindText MessageKind = "text"
	// MessageKindButtonReply is a tapped quick-reply or template button.
	MessageKindButtonReply MessageKind = "button_reply"
	// MessageKindListReply is a selected list row.
	MessageKindListReply MessageKind = "list_reply"
	// MessageKindLocation is a shared location.
	MessageKindLocation MessageKind = "location"
	// MessageKindImage is an image attachment.
	MessageKindImage MessageKind = "image"
	// MessageKindDocument is a document attachment.
	MessageKindDocument MessageKind = "document"
	// MessageKindUnsupported covers everything the normalizer does not
	// recognize; every handler's invalid-input path treats it uniformly.
	MessageKindUnsupported MessageKind = "unsupported"
)

// Coordinates holds a shared location.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// IncomingMessage is a flow-agnostic view of one inbound message.
type IncomingMessage struct {
	From      string       `json:"from"`
	Kind      MessageKind  `json:"kind"`
	Text      string       `json:"text,omitempty"`
	Selection string       `json:"selection,omitempty"`
	Location  *Coordinates `json:"location,omitempty"`
	Media     string       `json:"media,omitempty"`
	Time      time.Time    `json:"time"`
}

// TextContent returns the message text, or "" when the message carries none.
func (m *IncomingMessage) TextContent() string {
	return m.Text
}

// SelectionID returns the id of the tapped button or list row, or "".
func (m *IncomingMessage) SelectionID() string {
	return m.Selection
}

// Coordinates returns the shared location, or nil.
func (m *IncomingMessage) Coordinates() *Coordinates {
	return m.Location
}

// MediaID returns the opaque media handle for image/document messages, or "".
func (m *IncomingMessage) MediaID() string {
	return m.Media
}

// Button is one selectable option of a buttons prompt or list section row.
// ID is the value returned later as SelectionID.
type Button struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows of a list prompt.
type ListSection struct {
	Title string   `json:"title"`
	Rows  []Button `json:"rows"`
}
