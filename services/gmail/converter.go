package gmail

import (
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/customeros/mailsync/dto"
)

func toMessageIdentifier(m *gmailapi.Message) dto.MessageIdentifier {
	if m == nil {
		return dto.MessageIdentifier{}
	}
	return dto.MessageIdentifier{ID: m.Id, ThreadID: m.ThreadId}
}

func toMessageFullInfo(m *gmailapi.Message) *dto.MessageFullInfo {
	info := &dto.MessageFullInfo{
		ID:        m.Id,
		ThreadID:  m.ThreadId,
		HistoryID: m.HistoryId,
		Snippet:   m.Snippet,
		LabelIDs:  labelIDsOrEmpty(m.LabelIds),
	}
	if m.Payload != nil {
		payload := toMessagePayload(m.Payload)
		info.Payload = &payload
	}
	return info
}

func toMessagePayload(p *gmailapi.MessagePart) dto.MessagePayload {
	payload := dto.MessagePayload{
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		if h == nil {
			continue
		}
		payload.Headers = append(payload.Headers, dto.MessageHeader{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		payload.Body = dto.MessagePartBody{
			Data:         p.Body.Data,
			AttachmentID: p.Body.AttachmentId,
			Size:         p.Body.Size,
		}
	}
	for _, part := range p.Parts {
		if part == nil {
			continue
		}
		payload.Parts = append(payload.Parts, toMessagePayload(part))
	}
	return payload
}

// a message without labels (archived and read) is reported without the field
func labelIDsOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func toMessageLabelUpdate(m *gmailapi.Message) *dto.MessageLabelUpdate {
	return &dto.MessageLabelUpdate{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		LabelIDs: labelIDsOrEmpty(m.LabelIds),
	}
}

func toLabelPayload(l *gmailapi.Label) *dto.LabelPayload {
	return &dto.LabelPayload{ID: l.Id, Name: l.Name, Type: l.Type}
}

func toHistoryPage(resp *gmailapi.ListHistoryResponse) *dto.HistoryPage {
	page := &dto.HistoryPage{
		HistoryID:     resp.HistoryId,
		NextPageToken: resp.NextPageToken,
	}
	for _, h := range resp.History {
		if h == nil {
			continue
		}
		event := dto.HistoryEvent{ID: h.Id}
		for _, added := range h.MessagesAdded {
			if added != nil && added.Message != nil {
				event.MessagesAdded = append(event.MessagesAdded, toMessageIdentifier(added.Message))
			}
		}
		for _, deleted := range h.MessagesDeleted {
			if deleted != nil && deleted.Message != nil {
				event.MessagesDeleted = append(event.MessagesDeleted, toMessageIdentifier(deleted.Message))
			}
		}
		for _, added := range h.LabelsAdded {
			if added != nil && added.Message != nil {
				event.LabelsAdded = append(event.LabelsAdded, dto.LabelChange{
					Message:  toMessageIdentifier(added.Message),
					LabelIDs: added.LabelIds,
				})
			}
		}
		for _, removed := range h.LabelsRemoved {
			if removed != nil && removed.Message != nil {
				event.LabelsRemoved = append(event.LabelsRemoved, dto.LabelChange{
					Message:  toMessageIdentifier(removed.Message),
					LabelIDs: removed.LabelIds,
				})
			}
		}
		page.Events = append(page.Events, event)
	}
	return page
}
