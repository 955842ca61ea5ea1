package builders

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/enum"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

type LabelBuilder struct {
	labels interfaces.EmailLabelRepository
}

func NewLabelBuilder(labels interfaces.EmailLabelRepository) *LabelBuilder {
	return &LabelBuilder{labels: labels}
}

// GetOrCreateLabel loads the label for (account, id, type) or prepares a new one.
// The remote name always wins. Nothing is persisted until Save.
func (b *LabelBuilder) GetOrCreateLabel(ctx context.Context, account *models.EmailAccount, payload *dto.LabelPayload) (*models.EmailLabel, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "LabelBuilder.GetOrCreateLabel")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := payload.Validate(); err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	labelType, ok := enum.GetLabelType(payload.Type)
	if !ok {
		tracing.TraceErr(span, internalerrors.ErrInvalidLabelPayload)
		return nil, false, internalerrors.ErrInvalidLabelPayload
	}

	label, err := b.labels.Get(ctx, account.ID, payload.ID, labelType)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	created := label == nil
	if created {
		label = &models.EmailLabel{
			AccountID: account.ID,
			LabelID:   payload.ID,
			LabelType: labelType,
		}
	}
	label.Name = payload.Name

	return label, created, nil
}

func (b *LabelBuilder) Save(ctx context.Context, label *models.EmailLabel) error {
	return b.labels.Save(ctx, label)
}
