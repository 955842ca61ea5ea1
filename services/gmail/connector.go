package gmail

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/interfaces"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

const (
	userID           = "me"
	listPageSize     = 500
	formatFull       = "full"
	formatMinimal    = "minimal"
	defaultFetchPool = 10
)

// Connector talks to the Gmail API on behalf of a single account.
type Connector struct {
	service     *gmailapi.Service
	concurrency int
	log         logger.Logger
}

func NewConnector(service *gmailapi.Service, concurrency int, log logger.Logger) *Connector {
	if concurrency <= 0 {
		concurrency = defaultFetchPool
	}
	return &Connector{
		service:     service,
		concurrency: concurrency,
		log:         log,
	}
}

type ConnectorFactory struct {
	credentials interfaces.CredentialsProvider
	cfg         *config.GmailSyncConfig
	log         logger.Logger
	options     []option.ClientOption
}

// NewConnectorFactory builds connectors authorized by the credentials provider.
// Extra client options are appended to every service, e.g. a custom endpoint.
func NewConnectorFactory(credentials interfaces.CredentialsProvider, cfg *config.GmailSyncConfig, log logger.Logger, opts ...option.ClientOption) *ConnectorFactory {
	return &ConnectorFactory{
		credentials: credentials,
		cfg:         cfg,
		log:         log,
		options:     opts,
	}
}

func (f *ConnectorFactory) NewConnector(ctx context.Context, account *models.EmailAccount) (interfaces.GmailConnector, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectorFactory.NewConnector")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	tokenSource, err := f.credentials.TokenSource(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	opts := append([]option.ClientOption{option.WithTokenSource(tokenSource)}, f.options...)
	service, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, mapError(err, nil, "create gmail service")
	}

	return NewConnector(service, f.cfg.FetchConcurrency, f.log), nil
}

func (c *Connector) ListMessageIDs(ctx context.Context, pageToken string) (*dto.MessageIDPage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.ListMessageIDs")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)

	call := c.service.Users.Messages.List(userID).MaxResults(listPageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		err = mapError(err, nil, "list messages")
		tracing.TraceErr(span, err)
		return nil, err
	}

	page := &dto.MessageIDPage{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		if m != nil {
			page.Messages = append(page.Messages, toMessageIdentifier(m))
		}
	}
	span.LogKV("messages", len(page.Messages))
	return page, nil
}

func (c *Connector) GetProfileHistoryID(ctx context.Context) (uint64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.GetProfileHistoryID")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)

	profile, err := c.service.Users.GetProfile(userID).Context(ctx).Do()
	if err != nil {
		err = mapError(err, nil, "get profile")
		tracing.TraceErr(span, err)
		return 0, err
	}
	return profile.HistoryId, nil
}

func (c *Connector) GetMessageInfo(ctx context.Context, messageID string) (*dto.MessageFullInfo, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.GetMessageInfo")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("messageId", messageID)

	m, err := c.service.Users.Messages.Get(userID, messageID).Format(formatFull).Context(ctx).Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrMessageNotFound, "get message")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return toMessageFullInfo(m), nil
}

func (c *Connector) GetMessageListInfo(ctx context.Context, messageIDs []string) (map[string]*dto.MessageFullInfo, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.GetMessageListInfo")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("messages", len(messageIDs))

	result := make(map[string]*dto.MessageFullInfo, len(messageIDs))
	err := c.fetchEach(ctx, messageIDs, formatFull, func(m *gmailapi.Message) {
		result[m.Id] = toMessageFullInfo(m)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

func (c *Connector) GetLabelListInfo(ctx context.Context, messageIDs []string) (map[string]*dto.MessageLabelUpdate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.GetLabelListInfo")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("messages", len(messageIDs))

	result := make(map[string]*dto.MessageLabelUpdate, len(messageIDs))
	err := c.fetchEach(ctx, messageIDs, formatMinimal, func(m *gmailapi.Message) {
		result[m.Id] = toMessageLabelUpdate(m)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return result, nil
}

// fetchEach gets every message concurrently. Messages gone remotely are skipped,
// collect is called under a lock.
func (c *Connector) fetchEach(ctx context.Context, messageIDs []string, format string, collect func(*gmailapi.Message)) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, id := range messageIDs {
		id := id
		g.Go(func() error {
			m, err := c.service.Users.Messages.Get(userID, id).Format(format).Context(gctx).Do()
			if err != nil {
				if isNotFound(err) {
					c.log.Debugf("message %s no longer exists remotely", id)
					return nil
				}
				return mapError(err, nil, "get message "+id)
			}
			mu.Lock()
			collect(m)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (c *Connector) GetLabelsFromMessage(ctx context.Context, messageID string) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.GetLabelsFromMessage")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("messageId", messageID)

	m, err := c.service.Users.Messages.Get(userID, messageID).Format(formatMinimal).Context(ctx).Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrMessageNotFound, "get message labels")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return labelIDsOrEmpty(m.LabelIds), nil
}

func (c *Connector) ListLabels(ctx context.Context) ([]*dto.LabelPayload, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.ListLabels")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)

	resp, err := c.service.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		err = mapError(err, nil, "list labels")
		tracing.TraceErr(span, err)
		return nil, err
	}

	labels := make([]*dto.LabelPayload, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		if l != nil {
			labels = append(labels, toLabelPayload(l))
		}
	}
	return labels, nil
}

func (c *Connector) GetLabelInfo(ctx context.Context, labelID string) (*dto.LabelPayload, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.GetLabelInfo")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("labelId", labelID)

	l, err := c.service.Users.Labels.Get(userID, labelID).Context(ctx).Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrLabelNotFound, "get label")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return toLabelPayload(l), nil
}

func (c *Connector) ListHistory(ctx context.Context, startHistoryID uint64, pageToken string) (*dto.HistoryPage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.ListHistory")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("startHistoryId", startHistoryID, "pageToken", pageToken)

	call := c.service.Users.History.List(userID).StartHistoryId(startHistoryID).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrHistoryExpired, "list history")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return toHistoryPage(resp), nil
}

func (c *Connector) UpdateLabels(ctx context.Context, messageID string, modification dto.LabelModification) (*dto.MessageIdentifier, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.UpdateLabels")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("messageId", messageID, "add", modification.Add, "remove", modification.Remove)

	req := &gmailapi.ModifyMessageRequest{
		AddLabelIds:    modification.Add,
		RemoveLabelIds: modification.Remove,
	}
	m, err := c.service.Users.Messages.Modify(userID, messageID, req).Context(ctx).Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrMessageNotFound, "modify message labels")
		tracing.TraceErr(span, err)
		return nil, err
	}
	id := toMessageIdentifier(m)
	return &id, nil
}

func (c *Connector) SendMessage(ctx context.Context, raw []byte, threadID string) (*dto.MessageIdentifier, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.SendMessage")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)

	msg := &gmailapi.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}
	m, err := c.service.Users.Messages.Send(userID, msg).Context(ctx).Do()
	if err != nil {
		err = mapError(err, nil, "send message")
		tracing.TraceErr(span, err)
		return nil, err
	}
	id := toMessageIdentifier(m)
	return &id, nil
}

func (c *Connector) CreateDraft(ctx context.Context, raw []byte) (*dto.DraftResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.CreateDraft")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)

	draft := &gmailapi.Draft{
		Message: &gmailapi.Message{Raw: base64.URLEncoding.EncodeToString(raw)},
	}
	created, err := c.service.Users.Drafts.Create(userID, draft).Context(ctx).Do()
	if err != nil {
		err = mapError(err, nil, "create draft")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &dto.DraftResult{DraftID: created.Id, Message: toMessageIdentifier(created.Message)}, nil
}

func (c *Connector) UpdateDraft(ctx context.Context, raw []byte, draftID string) (*dto.DraftResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.UpdateDraft")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("draftId", draftID)

	draft := &gmailapi.Draft{
		Id:      draftID,
		Message: &gmailapi.Message{Raw: base64.URLEncoding.EncodeToString(raw)},
	}
	updated, err := c.service.Users.Drafts.Update(userID, draftID, draft).Context(ctx).Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrMessageNotFound, "update draft")
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &dto.DraftResult{DraftID: updated.Id, Message: toMessageIdentifier(updated.Message)}, nil
}

func (c *Connector) TrashMessage(ctx context.Context, messageID string) (*dto.MessageIdentifier, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.TrashMessage")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("messageId", messageID)

	m, err := c.service.Users.Messages.Trash(userID, messageID).Context(ctx).Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrMessageNotFound, "trash message")
		tracing.TraceErr(span, err)
		return nil, err
	}
	id := toMessageIdentifier(m)
	return &id, nil
}

func (c *Connector) DeleteMessage(ctx context.Context, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Connector.DeleteMessage")
	defer span.Finish()
	tracing.SetDefaultGmailConnectorSpanTags(ctx, span)
	span.LogKV("messageId", messageID)

	err := c.service.Users.Messages.Delete(userID, messageID).Context(ctx).Do()
	if err != nil {
		err = mapError(err, internalerrors.ErrMessageNotFound, "delete message")
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
