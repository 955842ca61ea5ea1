package builders

import (
	"context"
	"errors"
	"sync"

	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
)

// StoredLabelResolver resolves label ids against local storage and fetches
// unknown labels from the mailbox, storing them on first sight.
type StoredLabelResolver struct {
	labels    interfaces.EmailLabelRepository
	connector interfaces.GmailConnector
	builder   *LabelBuilder

	mu    sync.Mutex
	cache map[string]*models.EmailLabel
}

func NewStoredLabelResolver(labels interfaces.EmailLabelRepository, connector interfaces.GmailConnector) *StoredLabelResolver {
	return &StoredLabelResolver{
		labels:    labels,
		connector: connector,
		builder:   NewLabelBuilder(labels),
		cache:     make(map[string]*models.EmailLabel),
	}
}

func (r *StoredLabelResolver) GetLabel(ctx context.Context, account *models.EmailAccount, labelID string) (*models.EmailLabel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if label, ok := r.cache[labelID]; ok {
		return label, nil
	}

	label, err := r.labels.GetByLabelID(ctx, account.ID, labelID)
	if err != nil {
		return nil, err
	}
	if label == nil {
		payload, err := r.connector.GetLabelInfo(ctx, labelID)
		if errors.Is(err, internalerrors.ErrLabelNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		label, _, err = r.builder.GetOrCreateLabel(ctx, account, payload)
		if err != nil {
			return nil, err
		}
		if err := r.builder.Save(ctx, label); err != nil {
			return nil, err
		}
	}

	r.cache[labelID] = label
	return label, nil
}

// Forget drops cached entries, used after a full label resync.
func (r *StoredLabelResolver) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*models.EmailLabel)
}
