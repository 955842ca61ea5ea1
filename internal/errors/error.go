package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// common errors
	ErrTenantMissing   = errors.New("tenant is missing")
	ErrAccountNotFound = errors.New("email account not found")
	ErrOutboxNotFound  = errors.New("outbox message not found")
	ErrSyncInProgress  = errors.New("sync already in progress")

	// payload errors
	ErrInvalidPayload           = errors.New("invalid payload")
	ErrInvalidMessageIdentifier = fmt.Errorf("%w: message payload requires id and threadId", ErrInvalidPayload)
	ErrInvalidMessageInfo       = fmt.Errorf("%w: message payload requires snippet, threadId, labelIds and payload", ErrInvalidPayload)
	ErrInvalidLabelPayload      = fmt.Errorf("%w: label payload requires id and type", ErrInvalidPayload)

	// sync errors
	ErrAuth             = errors.New("account is not authorized")
	ErrSyncLimitReached = errors.New("sync limit reached")
	ErrHistoryExpired   = errors.New("history cursor is no longer valid")

	// transport errors
	ErrMessageNotFound   = errors.New("message not found")
	ErrLabelNotFound     = errors.New("label not found")
	ErrRemoteValidation  = errors.New("remote validation failed")
	ErrInvalidRecipients = errors.New("outbox message has no valid recipients")
)
