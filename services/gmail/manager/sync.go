package manager

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/enum"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
)

type SyncOptions struct {
	// Limit caps the number of new messages fetched by a full scan, zero means no limit.
	Limit int
	// FullSync forces a full scan even when the account has a cursor.
	FullSync bool
}

type SyncResult struct {
	FullScan bool
	Created  int
	Updated  int
	Deleted  int
	Skipped  int
	// MorePages is set when history pages remain after this pass.
	MorePages bool
}

// Synchronize runs one sync pass and records its outcome on the account.
// ErrSyncLimitReached is returned together with the result of the committed work.
func (m *Manager) Synchronize(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.Synchronize")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, m.account.ID)
	span.LogKV("limit", opts.Limit, "fullSync", opts.FullSync)

	accounts := m.repos.EmailAccountRepository
	if err := accounts.UpdateSyncState(ctx, m.account.ID, enum.SyncStateSyncing, ""); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result, err := m.synchronize(ctx, opts)
	if err == nil || errors.Is(err, internalerrors.ErrSyncLimitReached) {
		if uerr := m.UpdateUnreadCount(ctx); uerr != nil && err == nil {
			err = uerr
		}
	}

	state, syncError := enum.SyncStateIdle, ""
	switch {
	case err == nil:
	case errors.Is(err, internalerrors.ErrSyncLimitReached):
		state = enum.SyncStateSyncLimited
	default:
		state, syncError = enum.SyncStateSyncFailed, err.Error()
		tracing.TraceErr(span, err)
	}
	if serr := accounts.UpdateSyncState(ctx, m.account.ID, state, syncError); serr != nil {
		m.log.Errorf("failed to update sync state for account %s: %v", m.account.ID, serr)
	}
	m.account.SyncState = state
	m.account.SyncError = syncError

	return result, err
}

func (m *Manager) synchronize(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if opts.FullSync || m.account.IsFirstSync() {
		return m.fullSync(ctx, opts)
	}

	result, err := m.historySync(ctx)
	if errors.Is(err, internalerrors.ErrHistoryExpired) {
		m.log.Warnf("history cursor %d expired for account %s, falling back to a full scan", *m.account.HistoryID, m.account.ID)
		return m.fullSync(ctx, opts)
	}
	return result, err
}

func (m *Manager) fullSync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.fullSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	result := &SyncResult{FullScan: true}

	if err := m.SynchronizeLabels(ctx); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	newIDs, knownIDs, err := m.classifyAllMessageIDs(ctx, result)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("new", len(newIDs), "known", len(knownIDs))

	limited := opts.Limit > 0 && len(newIDs) > opts.Limit
	if limited {
		newIDs = newIDs[:opts.Limit]
	}

	firstHistoryID, err := m.fetchAndStoreMessages(ctx, newIDs, result)
	if err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}

	if limited {
		// stage the cursor of the newest message, the scan resumes from the older ones
		if m.account.TempHistoryID == nil && firstHistoryID != 0 {
			if err := m.saveCursor(ctx, m.account.HistoryID, &firstHistoryID); err != nil {
				tracing.TraceErr(span, err)
				return result, err
			}
		}
		return result, internalerrors.ErrSyncLimitReached
	}

	if !opts.FullSync && m.account.TempHistoryID != nil {
		// changes to messages stored by earlier passes are covered by history since the staged cursor
		staged := *m.account.TempHistoryID
		if err := m.saveCursor(ctx, &staged, nil); err != nil {
			tracing.TraceErr(span, err)
			return result, err
		}
		return result, nil
	}

	if err := m.refreshLabels(ctx, knownIDs, result); err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}

	cursor := firstHistoryID
	if cursor == 0 {
		if cursor, err = m.connector.GetProfileHistoryID(ctx); err != nil {
			tracing.TraceErr(span, err)
			return result, err
		}
	}
	if err := m.saveCursor(ctx, &cursor, nil); err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	return result, nil
}

// classifyAllMessageIDs lists every remote id and splits them into unseen and locally known ids.
// Non-message ids are skipped.
func (m *Manager) classifyAllMessageIDs(ctx context.Context, result *SyncResult) ([]string, []string, error) {
	nonMessageIDs, err := m.repos.NoEmailMessageIDRepository.ListMessageIDs(ctx, m.account.ID)
	if err != nil {
		return nil, nil, err
	}
	localIDs, err := m.repos.EmailMessageRepository.ListMessageIDs(ctx, m.account.ID)
	if err != nil {
		return nil, nil, err
	}
	nonMessage := utils.ToSet(nonMessageIDs)
	known := utils.ToSet(localIDs)
	seen := make(map[string]struct{})

	var newIDs, knownIDs []string
	pageToken := ""
	for {
		page, err := m.connector.ListMessageIDs(ctx, pageToken)
		if err != nil {
			return nil, nil, err
		}
		for _, msg := range page.Messages {
			if _, ok := seen[msg.ID]; ok {
				continue
			}
			seen[msg.ID] = struct{}{}

			if _, ok := nonMessage[msg.ID]; ok {
				result.Skipped++
				continue
			}
			if _, ok := known[msg.ID]; ok {
				knownIDs = append(knownIDs, msg.ID)
				continue
			}
			newIDs = append(newIDs, msg.ID)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return newIDs, knownIDs, nil
}

// fetchAndStoreMessages fetches full info in batches and stores every message.
// It returns the cursor reported by the first fetched message.
func (m *Manager) fetchAndStoreMessages(ctx context.Context, ids []string, result *SyncResult) (uint64, error) {
	var firstHistoryID uint64

	for _, batch := range utils.Chunk(ids, m.cfg.FullMessageBatchSize) {
		infos, err := m.connector.GetMessageListInfo(ctx, batch)
		if err != nil {
			return firstHistoryID, err
		}

		for _, id := range batch {
			info, ok := infos[id]
			if !ok {
				if err := m.deleteLocalMessage(ctx, id, result); err != nil {
					return firstHistoryID, err
				}
				continue
			}
			if firstHistoryID == 0 {
				firstHistoryID = info.HistoryID
			}

			created, err := m.storeMessageInfo(ctx, info, "")
			if err != nil {
				if isFatal(err) {
					return firstHistoryID, err
				}
				m.log.Warnf("skipping message %s for account %s: %v", id, m.account.ID, err)
				result.Skipped++
				continue
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
	}
	return firstHistoryID, nil
}

// refreshLabels applies the current remote label set to locally known messages.
func (m *Manager) refreshLabels(ctx context.Context, ids []string, result *SyncResult) error {
	for _, batch := range utils.Chunk(ids, m.cfg.LabelUpdateBatchSize) {
		updates, err := m.connector.GetLabelListInfo(ctx, batch)
		if err != nil {
			return err
		}

		for _, id := range batch {
			update, ok := updates[id]
			if !ok {
				if err := m.deleteLocalMessage(ctx, id, result); err != nil {
					return err
				}
				continue
			}

			built, err := m.messageBuilder.StoreLabelsForMessage(ctx, m.account, update)
			if err == nil {
				err = m.messageBuilder.Save(ctx, built)
			}
			if err != nil {
				if isFatal(err) {
					return err
				}
				m.log.Warnf("skipping label refresh of message %s for account %s: %v", id, m.account.ID, err)
				result.Skipped++
				continue
			}
			result.Updated++
		}
	}
	return nil
}

// historySync applies a single page of history events. When more pages remain the cursor
// is moved to the last applied event so the next pass resumes after it.
func (m *Manager) historySync(ctx context.Context) (*SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Manager.historySync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("historyId", *m.account.HistoryID)

	result := &SyncResult{}

	page, err := m.connector.ListHistory(ctx, *m.account.HistoryID, "")
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("events", len(page.Events), "nextPageToken", page.NextPageToken)

	if len(page.Events) == 0 {
		return result, nil
	}

	added, deleted, changed := collectHistoryChanges(page.Events)

	for _, id := range deleted {
		if err := m.deleteLocalMessage(ctx, id, result); err != nil {
			tracing.TraceErr(span, err)
			return result, err
		}
	}

	nonMessageIDs, err := m.repos.NoEmailMessageIDRepository.ListMessageIDs(ctx, m.account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	nonMessage := utils.ToSet(nonMessageIDs)

	var fetchIDs, refreshIDs []string
	for _, id := range added {
		if _, ok := nonMessage[id]; ok {
			result.Skipped++
			continue
		}
		fetchIDs = append(fetchIDs, id)
	}
	for _, id := range changed {
		if _, ok := nonMessage[id]; ok {
			continue
		}
		if utils.IsStringInSlice(id, fetchIDs) {
			continue
		}
		existing, err := m.repos.EmailMessageRepository.GetByMessageID(ctx, m.account.ID, id)
		if err != nil {
			tracing.TraceErr(span, err)
			return result, err
		}
		if existing == nil {
			fetchIDs = append(fetchIDs, id)
		} else {
			refreshIDs = append(refreshIDs, id)
		}
	}

	if _, err := m.fetchAndStoreMessages(ctx, fetchIDs, result); err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	if err := m.refreshLabels(ctx, refreshIDs, result); err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}

	cursor := page.HistoryID
	if page.NextPageToken != "" {
		cursor = page.Events[len(page.Events)-1].ID
		result.MorePages = true
	}
	if err := m.saveCursor(ctx, &cursor, nil); err != nil {
		tracing.TraceErr(span, err)
		return result, err
	}
	return result, nil
}

// collectHistoryChanges flattens events into ordered, de-duplicated id lists.
// Deleted ids are removed from the other two lists.
func collectHistoryChanges(events []dto.HistoryEvent) (added, deleted, changed []string) {
	for _, event := range events {
		for _, msg := range event.MessagesAdded {
			added = append(added, msg.ID)
		}
		for _, msg := range event.MessagesDeleted {
			deleted = append(deleted, msg.ID)
		}
		for _, change := range event.LabelsAdded {
			changed = append(changed, change.Message.ID)
		}
		for _, change := range event.LabelsRemoved {
			changed = append(changed, change.Message.ID)
		}
	}

	deleted = utils.RemoveDuplicates(deleted)
	gone := utils.ToSet(deleted)
	keep := func(ids []string) []string {
		result := make([]string, 0, len(ids))
		for _, id := range utils.RemoveDuplicates(ids) {
			if _, ok := gone[id]; !ok && id != "" {
				result = append(result, id)
			}
		}
		return result
	}
	return keep(added), deleted, keep(changed)
}

func (m *Manager) saveCursor(ctx context.Context, historyID, tempHistoryID *uint64) error {
	if err := m.repos.EmailAccountRepository.UpdateHistoryIDs(ctx, m.account.ID, historyID, tempHistoryID); err != nil {
		return err
	}
	m.account.HistoryID = historyID
	m.account.TempHistoryID = tempHistoryID
	return nil
}

func (m *Manager) deleteLocalMessage(ctx context.Context, messageID string, result *SyncResult) error {
	existing, err := m.repos.EmailMessageRepository.GetByMessageID(ctx, m.account.ID, messageID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := m.repos.EmailMessageRepository.Delete(ctx, existing.ID); err != nil {
		return err
	}
	if result != nil {
		result.Deleted++
	}
	return nil
}

// storeMessageInfo builds and saves a message from full info, draftID is kept when set.
func (m *Manager) storeMessageInfo(ctx context.Context, info *dto.MessageFullInfo, draftID string) (bool, error) {
	built, err := m.messageBuilder.StoreMessageInfo(ctx, m.account, info)
	if err != nil {
		return false, err
	}
	if draftID != "" {
		built.Message.DraftID = draftID
	}
	created := built.Created
	if err := m.messageBuilder.Save(ctx, built); err != nil {
		return false, err
	}
	return created, nil
}
