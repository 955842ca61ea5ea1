// Package composer renders outbox messages as raw MIME for sending through Gmail.
package composer

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type Composer struct {
	storage interfaces.StorageService
	log     logger.Logger
}

// NewComposer returns a composer, storage may be nil when outbox messages carry no attachments.
func NewComposer(storage interfaces.StorageService, log logger.Logger) *Composer {
	return &Composer{
		storage: storage,
		log:     log,
	}
}

func (c *Composer) Compose(ctx context.Context, account *models.EmailAccount, outbox *models.EmailOutboxMessage) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Composer.Compose")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)
	tracing.TagEntity(span, outbox.ID)

	to := c.recipients(outbox.To)
	cc := c.recipients(outbox.Cc)
	bcc := c.recipients(outbox.Bcc)
	if len(to)+len(cc)+len(bcc) == 0 {
		tracing.TraceErr(span, internalerrors.ErrInvalidRecipients)
		return nil, internalerrors.ErrInvalidRecipients
	}

	domain := utils.ExtractDomainFromEmail(account.EmailAddress)
	builder := enmime.Builder().
		From(outbox.FromName, account.EmailAddress).
		Subject(outbox.Subject).
		Date(utils.Now()).
		Header("Message-ID", utils.GenerateMessageID(domain, outbox.ID))

	if len(to) > 0 {
		builder = builder.ToAddrs(to)
	}
	if len(cc) > 0 {
		builder = builder.CCAddrs(cc)
	}
	if len(bcc) > 0 {
		// Gmail reads recipients from the headers and strips Bcc before delivery
		builder = builder.BCCAddrs(bcc).Header("Bcc", joinAddresses(bcc))
	}
	if outbox.InReplyTo != "" {
		builder = builder.Header("In-Reply-To", outbox.InReplyTo)
	}
	if outbox.References != "" {
		builder = builder.Header("References", outbox.References)
	}
	if outbox.BodyText != "" {
		builder = builder.Text([]byte(outbox.BodyText))
	}
	if outbox.BodyHTML != "" {
		builder = builder.HTML([]byte(outbox.BodyHTML))
	}

	for _, attachment := range outbox.Attachments {
		data, err := c.download(ctx, attachment)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if attachment.Inline {
			builder = builder.AddInline(data, attachment.ContentType, c.fileName(attachment), attachment.ContentID)
		} else {
			builder = builder.AddAttachment(data, attachment.ContentType, c.fileName(attachment))
		}
	}

	root, err := builder.Build()
	if err != nil {
		err = fmt.Errorf("%w: %v", internalerrors.ErrInvalidPayload, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// recipients drops duplicates and syntactically invalid addresses.
func (c *Composer) recipients(addresses []string) []mail.Address {
	var result []mail.Address
	seen := make(map[string]struct{})
	for _, address := range utils.UniqueEmails(addresses) {
		name := ""
		if parsed, err := mail.ParseAddress(address); err == nil {
			name, address = parsed.Name, parsed.Address
		}

		validation := mailvalidate.ValidateEmailSyntax(address)
		if !validation.IsValid {
			c.log.Warnf("dropping invalid recipient %q", address)
			continue
		}
		key := strings.ToLower(validation.CleanEmail)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, mail.Address{Name: name, Address: validation.CleanEmail})
	}
	return result
}

func joinAddresses(addresses []mail.Address) string {
	values := make([]string, len(addresses))
	for i := range addresses {
		values[i] = addresses[i].String()
	}
	return strings.Join(values, ", ")
}

func (c *Composer) download(ctx context.Context, attachment models.EmailOutboxAttachment) ([]byte, error) {
	if c.storage == nil {
		return nil, fmt.Errorf("no storage configured for attachment %s", attachment.ID)
	}
	data, err := c.storage.Download(ctx, attachment.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment %s: %w", attachment.ID, err)
	}
	return data, nil
}

func (c *Composer) fileName(attachment models.EmailOutboxAttachment) string {
	if attachment.FileName != "" {
		return attachment.FileName
	}
	return attachment.ID + "." + utils.GetFileExtensionFromContentType(attachment.ContentType)
}
