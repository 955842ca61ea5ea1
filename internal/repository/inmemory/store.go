// Package inmemory holds map-backed implementations of the repository interfaces,
// used by tests and by local dry runs of the sync pipeline.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/utils"
)

type Store struct {
	mu            sync.Mutex
	accounts      map[string]*models.EmailAccount
	messages      map[string]*models.EmailMessage
	messageLabels map[string][]string // message pk -> label pks
	headers       map[string][]models.EmailHeader
	labels        map[string]*models.EmailLabel
	noMessageIDs  map[string]map[string]struct{}
	outbox        map[string]*models.EmailOutboxMessage
	locks         map[string]models.SyncLock

	// failures injected by tests, keyed by remote message id
	FailSaveFor map[string]error
}

func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*models.EmailAccount),
		messages:      make(map[string]*models.EmailMessage),
		messageLabels: make(map[string][]string),
		headers:       make(map[string][]models.EmailHeader),
		labels:        make(map[string]*models.EmailLabel),
		noMessageIDs:  make(map[string]map[string]struct{}),
		outbox:        make(map[string]*models.EmailOutboxMessage),
		locks:         make(map[string]models.SyncLock),
		FailSaveFor:   make(map[string]error),
	}
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		EmailAccountRepository:     &accountRepository{s},
		EmailMessageRepository:     &messageRepository{s},
		EmailLabelRepository:       &labelRepository{s},
		NoEmailMessageIDRepository: &noMessageIDRepository{s},
		EmailOutboxRepository:      &outboxRepository{s},
		SyncLockRepository:         &lockRepository{s},
	}
}

// Messages returns copies of every stored message of the account, ordered by remote id.
func (s *Store) Messages(accountID string) []*models.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.EmailMessage
	for _, m := range s.messages {
		if m.AccountID == accountID {
			result = append(result, s.loadMessage(m))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MessageID < result[j].MessageID })
	return result
}

// Labels returns copies of every stored label of the account, ordered by remote id.
func (s *Store) Labels(accountID string) []*models.EmailLabel {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.EmailLabel
	for _, l := range s.labels {
		if l.AccountID == accountID {
			c := *l
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LabelID < result[j].LabelID })
	return result
}

func (s *Store) loadMessage(m *models.EmailMessage) *models.EmailMessage {
	c := *m
	c.Labels = nil
	for _, labelPK := range s.messageLabels[m.ID] {
		if l, ok := s.labels[labelPK]; ok {
			lc := *l
			c.Labels = append(c.Labels, &lc)
		}
	}
	c.Headers = append([]models.EmailHeader(nil), s.headers[m.ID]...)
	return &c
}

type accountRepository struct{ s *Store }

func (r *accountRepository) Create(_ context.Context, account *models.EmailAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if account.ID == "" {
		account.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	if account.SyncState == "" {
		account.SyncState = enum.SyncStateIdle
	}
	c := *account
	r.s.accounts[account.ID] = &c
	return nil
}

func (r *accountRepository) GetByID(_ context.Context, id string) (*models.EmailAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r *accountRepository) ListSyncable(_ context.Context) ([]*models.EmailAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*models.EmailAccount
	for _, a := range r.s.accounts {
		if a.IsAuthorized && !a.IsDeleted {
			c := *a
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *accountRepository) UpdateHistoryIDs(_ context.Context, accountID string, historyID, tempHistoryID *uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[accountID]; ok {
		a.HistoryID = copyUint(historyID)
		a.TempHistoryID = copyUint(tempHistoryID)
	}
	return nil
}

func (r *accountRepository) UpdateSyncState(_ context.Context, accountID string, state enum.SyncState, syncError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[accountID]; ok {
		a.SyncState = state
		a.SyncError = syncError
		if state != enum.SyncStateSyncing {
			a.LastSyncedAt = utils.NowPtr()
		}
	}
	return nil
}

func (r *accountRepository) SetAuthorized(_ context.Context, accountID string, authorized bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[accountID]; ok {
		a.IsAuthorized = authorized
	}
	return nil
}

func (r *accountRepository) UpdateToken(_ context.Context, accountID, accessToken, refreshToken string, expiry time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[accountID]; ok {
		a.AccessToken = accessToken
		if refreshToken != "" {
			a.RefreshToken = refreshToken
		}
		a.TokenExpiry = &expiry
	}
	return nil
}

type messageRepository struct{ s *Store }

func (r *messageRepository) GetByID(_ context.Context, id string) (*models.EmailMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return r.s.loadMessage(m), nil
}

func (r *messageRepository) GetByMessageID(_ context.Context, accountID, messageID string) (*models.EmailMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.s.findMessage(accountID, messageID)
	if m == nil {
		return nil, nil
	}
	return r.s.loadMessage(m), nil
}

func (s *Store) findMessage(accountID, messageID string) *models.EmailMessage {
	for _, m := range s.messages {
		if m.AccountID == accountID && m.MessageID == messageID {
			return m
		}
	}
	return nil
}

func (r *messageRepository) ListMessageIDs(_ context.Context, accountID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for _, m := range r.s.messages {
		if m.AccountID == accountID {
			ids = append(ids, m.MessageID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *messageRepository) Save(_ context.Context, message *models.EmailMessage, labels []*models.EmailLabel, headers []models.EmailHeader, replaceHeaders bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if message == nil || message.AccountID == "" || message.MessageID == "" {
		return repository.ErrInvalidInput
	}
	if err := r.s.FailSaveFor[message.MessageID]; err != nil {
		return err
	}

	if message.ID == "" {
		if existing := r.s.findMessage(message.AccountID, message.MessageID); existing != nil {
			message.ID = existing.ID
		} else {
			message.ID = utils.GenerateNanoIDWithPrefix("emsg", 16)
		}
	}

	stored := *message
	stored.Labels = nil
	stored.Headers = nil
	r.s.messages[message.ID] = &stored

	labelPKs := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != nil && !utils.IsStringInSlice(l.ID, labelPKs) {
			labelPKs = append(labelPKs, l.ID)
		}
	}
	r.s.messageLabels[message.ID] = labelPKs
	message.Labels = labels

	if replaceHeaders {
		rows := make([]models.EmailHeader, len(headers))
		for i, h := range headers {
			h.EmailMessageID = message.ID
			h.Position = i
			rows[i] = h
		}
		r.s.headers[message.ID] = rows
		message.Headers = rows
	}
	return nil
}

func (r *messageRepository) SetRemoved(_ context.Context, id string, removed bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok {
		m.IsRemoved = removed
	}
	return nil
}

func (r *messageRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.messages, id)
	delete(r.s.messageLabels, id)
	delete(r.s.headers, id)
	return nil
}

func (r *messageRepository) DeleteByMessageID(ctx context.Context, accountID, messageID string) error {
	r.s.mu.Lock()
	m := r.s.findMessage(accountID, messageID)
	r.s.mu.Unlock()
	if m == nil {
		return nil
	}
	return r.Delete(ctx, m.ID)
}

type labelRepository struct{ s *Store }

func (r *labelRepository) Get(_ context.Context, accountID, labelID string, labelType enum.LabelType) (*models.EmailLabel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.labels {
		if l.AccountID == accountID && l.LabelID == labelID && l.LabelType == labelType {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (r *labelRepository) GetByLabelID(_ context.Context, accountID, labelID string) (*models.EmailLabel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.labels {
		if l.AccountID == accountID && l.LabelID == labelID {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (r *labelRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.EmailLabel, error) {
	return r.s.Labels(accountID), nil
}

func (r *labelRepository) Save(_ context.Context, label *models.EmailLabel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if label == nil || label.AccountID == "" || label.LabelID == "" {
		return repository.ErrInvalidInput
	}
	if label.ID == "" {
		label.ID = utils.GenerateNanoIDWithPrefix("elbl", 16)
	}
	c := *label
	r.s.labels[label.ID] = &c
	return nil
}

func (r *labelRepository) RecomputeUnreadCounts(_ context.Context, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[string]int)
	for id, m := range r.s.messages {
		if m.AccountID != accountID || m.Read {
			continue
		}
		for _, labelPK := range r.s.messageLabels[id] {
			counts[labelPK]++
		}
	}
	for id, l := range r.s.labels {
		if l.AccountID == accountID {
			l.Unread = counts[id]
		}
	}
	return nil
}

type noMessageIDRepository struct{ s *Store }

func (r *noMessageIDRepository) ListMessageIDs(_ context.Context, accountID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for id := range r.s.noMessageIDs[accountID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *noMessageIDRepository) Create(_ context.Context, accountID, messageID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.noMessageIDs[accountID] == nil {
		r.s.noMessageIDs[accountID] = make(map[string]struct{})
	}
	r.s.noMessageIDs[accountID][messageID] = struct{}{}
	return nil
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) Create(_ context.Context, message *models.EmailOutboxMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if message.ID == "" {
		message.ID = utils.GenerateNanoIDWithPrefix("eout", 16)
	}
	c := *message
	r.s.outbox[message.ID] = &c
	return nil
}

func (r *outboxRepository) GetByID(_ context.Context, id string) (*models.EmailOutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.outbox[id]
	if !ok {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (r *outboxRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.outbox, id)
	return nil
}

type lockRepository struct{ s *Store }

func (r *lockRepository) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := utils.Now()
	if existing, ok := r.s.locks[key]; ok && !existing.ExpiresAt.Before(now) {
		return false, nil
	}
	r.s.locks[key] = models.SyncLock{Key: key, Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return true, nil
}

func (r *lockRepository) Extend(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.locks[key]
	if !ok || existing.Owner != owner {
		return false, nil
	}
	existing.ExpiresAt = utils.Now().Add(ttl)
	r.s.locks[key] = existing
	return true, nil
}

func (r *lockRepository) Release(_ context.Context, key, owner string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.locks[key]; ok && existing.Owner == owner {
		delete(r.s.locks, key)
	}
	return nil
}

func (r *lockRepository) IsSet(_ context.Context, key string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.locks[key]
	return ok && !existing.ExpiresAt.Before(utils.Now()), nil
}

func copyUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
