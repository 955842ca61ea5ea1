package enum

type LabelType string

const (
	LabelTypeSystem LabelType = "system"
	LabelTypeUser   LabelType = "user"
)

func (t LabelType) String() string {
	return string(t)
}

// GetLabelType maps the remote label type to a LabelType, ok is false for unknown values.
func GetLabelType(s string) (LabelType, bool) {
	switch s {
	case "system", "SYSTEM":
		return LabelTypeSystem, true
	case "user", "USER":
		return LabelTypeUser, true
	}
	return "", false
}

type SyncState string

const (
	SyncStateIdle        SyncState = "idle"
	SyncStateSyncing     SyncState = "syncing"
	SyncStateSyncFailed  SyncState = "sync_failed"
	SyncStateSyncLimited SyncState = "sync_limited"
)

func (s SyncState) String() string {
	return string(s)
}

type MessageAction string

const (
	MessageActionToggleRead MessageAction = "toggle_read"
	MessageActionArchive    MessageAction = "archive"
	MessageActionTrash      MessageAction = "trash"
	MessageActionDelete     MessageAction = "delete"
	MessageActionLabels     MessageAction = "add_and_remove_labels"
	MessageActionSend       MessageAction = "send"
	MessageActionDraft      MessageAction = "draft"
)

func (a MessageAction) String() string {
	return string(a)
}
