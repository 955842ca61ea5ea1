package dto

import (
	"strings"

	internalerrors "github.com/customeros/mailsync/internal/errors"
)

// MessageIdentifier is the smallest message payload: enough to locate a message.
type MessageIdentifier struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

func (m MessageIdentifier) Validate() error {
	if m.ID == "" || m.ThreadID == "" {
		return internalerrors.ErrInvalidMessageIdentifier
	}
	return nil
}

// MessageFullInfo is a complete message as returned by a "full" format get.
type MessageFullInfo struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"threadId"`
	HistoryID uint64          `json:"historyId"`
	Snippet   string          `json:"snippet"`
	LabelIDs  []string        `json:"labelIds"`
	Payload   *MessagePayload `json:"payload"`
}

func (m *MessageFullInfo) Identifier() MessageIdentifier {
	return MessageIdentifier{ID: m.ID, ThreadID: m.ThreadID}
}

// Validate checks the populate-level fields. An empty snippet is accepted, the
// Gmail API omits it from the JSON for messages without text.
func (m *MessageFullInfo) Validate() error {
	if m.ThreadID == "" || m.LabelIDs == nil || m.Payload == nil {
		return internalerrors.ErrInvalidMessageInfo
	}
	return nil
}

type MessagePayload struct {
	MimeType string           `json:"mimeType"`
	Filename string           `json:"filename"`
	Headers  []MessageHeader  `json:"headers"`
	Body     MessagePartBody  `json:"body"`
	Parts    []MessagePayload `json:"parts"`
}

// Header returns the first header value matching name case-insensitively.
func (p *MessagePayload) Header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

type MessageHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type MessagePartBody struct {
	// base64url encoded
	Data         string `json:"data"`
	AttachmentID string `json:"attachmentId"`
	Size         int64  `json:"size"`
}

// MessageLabelUpdate carries the current label set of a message, from a "minimal" format get.
type MessageLabelUpdate struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds"`
}

func (m *MessageLabelUpdate) Identifier() MessageIdentifier {
	return MessageIdentifier{ID: m.ID, ThreadID: m.ThreadID}
}

type LabelPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (l *LabelPayload) Validate() error {
	if l == nil || l.ID == "" || l.Type == "" {
		return internalerrors.ErrInvalidLabelPayload
	}
	return nil
}

type MessageIDPage struct {
	Messages      []MessageIdentifier
	NextPageToken string
}

type LabelChange struct {
	Message  MessageIdentifier
	LabelIDs []string
}

type HistoryEvent struct {
	ID              uint64
	MessagesAdded   []MessageIdentifier
	MessagesDeleted []MessageIdentifier
	LabelsAdded     []LabelChange
	LabelsRemoved   []LabelChange
}

type HistoryPage struct {
	Events []HistoryEvent
	// mailbox cursor at the time of the request
	HistoryID     uint64
	NextPageToken string
}

type LabelModification struct {
	Add    []string
	Remove []string
}

func (m LabelModification) IsEmpty() bool {
	return len(m.Add) == 0 && len(m.Remove) == 0
}

type DraftResult struct {
	DraftID string
	Message MessageIdentifier
}
