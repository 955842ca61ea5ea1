// Package gmailtest provides an in-memory mailbox implementing interfaces.GmailConnector.
package gmailtest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/jhillyerd/enmime"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
)

var _ interfaces.GmailConnector = (*Mailbox)(nil)

type Mailbox struct {
	mu sync.Mutex

	messages map[string]*dto.MessageFullInfo
	order    []string
	labels   map[string]*dto.LabelPayload
	drafts   map[string]string // draft id -> message id
	vanished map[string]struct{}

	// History pages keyed by page token, "" is the first page.
	History map[string]*dto.HistoryPage
	// HistoryErr is returned by every ListHistory call when set.
	HistoryErr error
	// HistoryStarts records the start cursor of every ListHistory call.
	HistoryStarts []uint64

	// ListPageSize splits ListMessageIDs into pages, zero means a single page.
	ListPageSize int
	// UpdateLabelsErrors are returned by consecutive UpdateLabels calls before they succeed.
	UpdateLabelsErrors []error
	// OnLabelsRejected runs after an UpdateLabels call was failed by UpdateLabelsErrors.
	OnLabelsRejected func(messageID string)
	// Errors forces a method, by name, to fail.
	Errors map[string]error

	Calls   map[string]int
	Fetched []string
	SentRaw [][]byte
	// Modifications records every accepted label modification.
	Modifications []dto.LabelModification

	nextID    int
	historyID uint64
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		messages:  make(map[string]*dto.MessageFullInfo),
		labels:    make(map[string]*dto.LabelPayload),
		drafts:    make(map[string]string),
		vanished:  make(map[string]struct{}),
		History:   make(map[string]*dto.HistoryPage),
		Errors:    make(map[string]error),
		Calls:     make(map[string]int),
		historyID: 1000,
	}
}

type ConnectorFactory struct {
	Mailbox *Mailbox
	Err     error
}

func (f *ConnectorFactory) NewConnector(_ context.Context, _ *models.EmailAccount) (interfaces.GmailConnector, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Mailbox, nil
}

// AddLabel registers a label, labelType is "system" or "user".
func (m *Mailbox) AddLabel(id, name, labelType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[id] = &dto.LabelPayload{ID: id, Name: name, Type: labelType}
}

// AddTextMessage adds a plain text message and returns its full info.
func (m *Mailbox) AddTextMessage(id, threadID, subject, body string, labelIDs ...string) *dto.MessageFullInfo {
	if labelIDs == nil {
		labelIDs = []string{}
	}
	info := &dto.MessageFullInfo{
		ID:       id,
		ThreadID: threadID,
		Snippet:  body,
		LabelIDs: labelIDs,
		Payload: &dto.MessagePayload{
			MimeType: "text/plain",
			Headers: []dto.MessageHeader{
				{Name: "From", Value: "sender@example.com"},
				{Name: "Subject", Value: subject},
				{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 -0700"},
			},
			Body: dto.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte(body)),
				Size: int64(len(body)),
			},
		},
	}
	m.AddMessage(info)
	return info
}

func (m *Mailbox) AddMessage(info *dto.MessageFullInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putMessage(info)
}

func (m *Mailbox) putMessage(info *dto.MessageFullInfo) {
	if _, ok := m.messages[info.ID]; !ok {
		m.order = append(m.order, info.ID)
	}
	m.historyID++
	if info.HistoryID == 0 {
		info.HistoryID = m.historyID
	}
	m.messages[info.ID] = info
}

func (m *Mailbox) removeMessage(id string) {
	delete(m.messages, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// SetLabels replaces the label set of a stored message.
func (m *Mailbox) SetLabels(id string, labelIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.messages[id]; ok {
		info.LabelIDs = append([]string{}, labelIDs...)
	}
}

// Vanish keeps a message listed while every fetch reports it missing.
func (m *Mailbox) Vanish(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vanished[id] = struct{}{}
}

func (m *Mailbox) Message(id string) *dto.MessageFullInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vanished[id]; ok {
		return nil
	}
	if info, ok := m.messages[id]; ok {
		c := *info
		c.LabelIDs = append([]string{}, info.LabelIDs...)
		return &c
	}
	return nil
}

func (m *Mailbox) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

func (m *Mailbox) call(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[method]++
	return m.Errors[method]
}

func (m *Mailbox) ListMessageIDs(_ context.Context, pageToken string) (*dto.MessageIDPage, error) {
	if err := m.call("ListMessageIDs"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := len(m.order)
	if m.ListPageSize > 0 && start+m.ListPageSize < end {
		end = start + m.ListPageSize
	}

	page := &dto.MessageIDPage{}
	for _, id := range m.order[start:end] {
		page.Messages = append(page.Messages, dto.MessageIdentifier{ID: id, ThreadID: m.messages[id].ThreadID})
	}
	if end < len(m.order) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (m *Mailbox) GetProfileHistoryID(_ context.Context) (uint64, error) {
	if err := m.call("GetProfileHistoryID"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyID, nil
}

func (m *Mailbox) GetMessageInfo(_ context.Context, messageID string) (*dto.MessageFullInfo, error) {
	if err := m.call("GetMessageInfo"); err != nil {
		return nil, err
	}
	info := m.Message(messageID)
	if info == nil {
		return nil, internalerrors.ErrMessageNotFound
	}
	return info, nil
}

func (m *Mailbox) GetMessageListInfo(_ context.Context, messageIDs []string) (map[string]*dto.MessageFullInfo, error) {
	if err := m.call("GetMessageListInfo"); err != nil {
		return nil, err
	}
	result := make(map[string]*dto.MessageFullInfo, len(messageIDs))
	for _, id := range messageIDs {
		if info := m.Message(id); info != nil {
			result[id] = info
		}
	}
	m.mu.Lock()
	m.Fetched = append(m.Fetched, messageIDs...)
	m.mu.Unlock()
	return result, nil
}

func (m *Mailbox) GetLabelListInfo(_ context.Context, messageIDs []string) (map[string]*dto.MessageLabelUpdate, error) {
	if err := m.call("GetLabelListInfo"); err != nil {
		return nil, err
	}
	result := make(map[string]*dto.MessageLabelUpdate, len(messageIDs))
	for _, id := range messageIDs {
		if info := m.Message(id); info != nil {
			result[id] = &dto.MessageLabelUpdate{ID: info.ID, ThreadID: info.ThreadID, LabelIDs: info.LabelIDs}
		}
	}
	return result, nil
}

func (m *Mailbox) GetLabelsFromMessage(_ context.Context, messageID string) ([]string, error) {
	if err := m.call("GetLabelsFromMessage"); err != nil {
		return nil, err
	}
	info := m.Message(messageID)
	if info == nil {
		return nil, internalerrors.ErrMessageNotFound
	}
	return info.LabelIDs, nil
}

func (m *Mailbox) ListLabels(_ context.Context) ([]*dto.LabelPayload, error) {
	if err := m.call("ListLabels"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	labels := make([]*dto.LabelPayload, 0, len(m.labels))
	for _, l := range m.labels {
		c := *l
		labels = append(labels, &c)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].ID < labels[j].ID })
	return labels, nil
}

func (m *Mailbox) GetLabelInfo(_ context.Context, labelID string) (*dto.LabelPayload, error) {
	if err := m.call("GetLabelInfo"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labels[labelID]
	if !ok {
		return nil, internalerrors.ErrLabelNotFound
	}
	c := *l
	return &c, nil
}

func (m *Mailbox) ListHistory(_ context.Context, startHistoryID uint64, pageToken string) (*dto.HistoryPage, error) {
	if err := m.call("ListHistory"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryStarts = append(m.HistoryStarts, startHistoryID)
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	page, ok := m.History[pageToken]
	if !ok {
		return &dto.HistoryPage{HistoryID: startHistoryID}, nil
	}
	return page, nil
}

func (m *Mailbox) UpdateLabels(_ context.Context, messageID string, modification dto.LabelModification) (*dto.MessageIdentifier, error) {
	if err := m.call("UpdateLabels"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if len(m.UpdateLabelsErrors) > 0 {
		err := m.UpdateLabelsErrors[0]
		m.UpdateLabelsErrors = m.UpdateLabelsErrors[1:]
		hook := m.OnLabelsRejected
		m.mu.Unlock()
		if hook != nil {
			hook(messageID)
		}
		return nil, err
	}
	defer m.mu.Unlock()

	info, ok := m.messages[messageID]
	if !ok {
		return nil, internalerrors.ErrMessageNotFound
	}
	next := make([]string, 0, len(info.LabelIDs)+len(modification.Add))
	for _, id := range info.LabelIDs {
		if !contains(modification.Remove, id) {
			next = append(next, id)
		}
	}
	for _, id := range modification.Add {
		if !contains(next, id) {
			next = append(next, id)
		}
	}
	info.LabelIDs = next
	m.Modifications = append(m.Modifications, modification)
	return &dto.MessageIdentifier{ID: info.ID, ThreadID: info.ThreadID}, nil
}

func (m *Mailbox) SendMessage(_ context.Context, raw []byte, threadID string) (*dto.MessageIdentifier, error) {
	if err := m.call("SendMessage"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.messageFromRaw(raw, threadID, "SENT")
	if err != nil {
		return nil, err
	}
	m.SentRaw = append(m.SentRaw, raw)
	m.putMessage(info)
	id := info.Identifier()
	return &id, nil
}

func (m *Mailbox) CreateDraft(_ context.Context, raw []byte) (*dto.DraftResult, error) {
	if err := m.call("CreateDraft"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.messageFromRaw(raw, "", "DRAFT")
	if err != nil {
		return nil, err
	}
	m.putMessage(info)
	draftID := fmt.Sprintf("r-%d", m.nextID)
	m.drafts[draftID] = info.ID
	return &dto.DraftResult{DraftID: draftID, Message: info.Identifier()}, nil
}

func (m *Mailbox) UpdateDraft(_ context.Context, raw []byte, draftID string) (*dto.DraftResult, error) {
	if err := m.call("UpdateDraft"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, ok := m.drafts[draftID]
	if !ok {
		return nil, internalerrors.ErrMessageNotFound
	}
	threadID := ""
	if old, ok := m.messages[previous]; ok {
		threadID = old.ThreadID
	}
	info, err := m.messageFromRaw(raw, threadID, "DRAFT")
	if err != nil {
		return nil, err
	}
	m.removeMessage(previous)
	m.putMessage(info)
	m.drafts[draftID] = info.ID
	return &dto.DraftResult{DraftID: draftID, Message: info.Identifier()}, nil
}

func (m *Mailbox) TrashMessage(_ context.Context, messageID string) (*dto.MessageIdentifier, error) {
	if err := m.call("TrashMessage"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.messages[messageID]
	if !ok {
		return nil, internalerrors.ErrMessageNotFound
	}
	next := []string{"TRASH"}
	for _, id := range info.LabelIDs {
		if id != "INBOX" && id != "TRASH" {
			next = append(next, id)
		}
	}
	info.LabelIDs = next
	return &dto.MessageIdentifier{ID: info.ID, ThreadID: info.ThreadID}, nil
}

func (m *Mailbox) DeleteMessage(_ context.Context, messageID string) error {
	if err := m.call("DeleteMessage"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[messageID]; !ok {
		return internalerrors.ErrMessageNotFound
	}
	m.removeMessage(messageID)
	return nil
}

// messageFromRaw parses a composed MIME message into the shape the API would return for it.
func (m *Mailbox) messageFromRaw(raw []byte, threadID, labelID string) (*dto.MessageFullInfo, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerrors.ErrRemoteValidation, err)
	}

	m.nextID++
	id := fmt.Sprintf("m-%d", m.nextID)
	if threadID == "" {
		threadID = "t-" + id
	}

	payload := &dto.MessagePayload{MimeType: "multipart/alternative"}
	for _, key := range env.GetHeaderKeys() {
		payload.Headers = append(payload.Headers, dto.MessageHeader{Name: key, Value: env.GetHeader(key)})
	}
	if env.Text != "" {
		payload.Parts = append(payload.Parts, dto.MessagePayload{
			MimeType: "text/plain",
			Body:     dto.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(env.Text))},
		})
	}
	if env.HTML != "" {
		payload.Parts = append(payload.Parts, dto.MessagePayload{
			MimeType: "text/html",
			Body:     dto.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(env.HTML))},
		})
	}

	return &dto.MessageFullInfo{
		ID:       id,
		ThreadID: threadID,
		Snippet:  env.Text,
		LabelIDs: []string{labelID},
		Payload:  payload,
	}, nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
