package dto

// Message actions reference the stored EmailMessage by its own id, not by the remote message id.

type ToggleReadEmailMessage struct {
	MessageID string `json:"messageId"`
	Read      bool   `json:"read"`
}

type ArchiveEmailMessage struct {
	MessageID string `json:"messageId"`
}

type TrashEmailMessage struct {
	MessageID string `json:"messageId"`
}

type DeleteEmailMessage struct {
	MessageID string `json:"messageId"`
}

type AddAndRemoveLabelsEmailMessage struct {
	MessageID    string   `json:"messageId"`
	AddLabels    []string `json:"addLabels"`
	RemoveLabels []string `json:"removeLabels"`
}

type SendEmailMessage struct {
	OutboxMessageID string `json:"outboxMessageId"`
}

type CreateDraftEmailMessage struct {
	OutboxMessageID string `json:"outboxMessageId"`
}

type UpdateDraftEmailMessage struct {
	OutboxMessageID string `json:"outboxMessageId"`
}
