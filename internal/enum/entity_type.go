package enum

type EntityType string

const (
	EMAIL_ACCOUNT EntityType = "EMAIL_ACCOUNT"
	EMAIL_MESSAGE EntityType = "EMAIL_MESSAGE"
	EMAIL_OUTBOX  EntityType = "EMAIL_OUTBOX"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
