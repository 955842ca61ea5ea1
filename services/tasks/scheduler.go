package tasks

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/synclock"
)

// ScheduleEmailSync dispatches a sync task for every syncable account. Accounts without a
// cursor get a first sync, at most one at a time. The others get an incremental sync unless
// one is already running, staggered by the configured delay.
func (s *Service) ScheduleEmailSync(ctx context.Context) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TasksService.ScheduleEmailSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	accounts, err := s.repos.EmailAccountRepository.ListSyncable(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	var (
		scheduled int
		delay     time.Duration
		now       = utils.Now()
	)
	for _, account := range accounts {
		accountCtx := utils.SetAccountInContext(ctx, account.Tenant, account.ID)

		if account.HistoryID == nil {
			if s.scheduleFirstSync(accountCtx, account) {
				scheduled++
			}
			continue
		}

		set, err := synclock.NewEmailSyncLock(s.repos.SyncLockRepository, account.ID, s.cfg.SyncLockTTL).IsSet(accountCtx)
		if err != nil {
			s.log.Errorf("failed to check sync lock for account %s: %v", account.ID, err)
			continue
		}
		if set {
			s.log.Debugf("sync already running for %s", account.EmailAddress)
			continue
		}

		event := dto.SyncEmailAccount{AccountID: account.ID, NotBefore: now.Add(delay)}
		if err := s.publisher.PublishSyncEmailAccount(accountCtx, event); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to schedule sync for account %s: %v", account.ID, err)
			continue
		}
		s.log.Debugf("scheduled sync for %s", account.EmailAddress)
		scheduled++
		delay += s.cfg.SyncDelayInterval
	}

	span.LogKV("scheduled", scheduled)
	return scheduled, nil
}

func (s *Service) scheduleFirstSync(ctx context.Context, account *models.EmailAccount) bool {
	lock := synclock.NewFirstSyncLock(s.repos.SyncLockRepository, account.ID, s.cfg.SyncLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		s.log.Errorf("failed to acquire first sync lock for account %s: %v", account.ID, err)
		return false
	}
	if !acquired {
		s.log.Debugf("first sync for %s already scheduled", account.EmailAddress)
		return false
	}

	if err := s.publisher.PublishFirstSyncEmailAccount(ctx, dto.FirstSyncEmailAccount{AccountID: account.ID, LockOwner: lock.Owner(), NotBefore: utils.Now()}); err != nil {
		s.log.Errorf("failed to schedule first sync for account %s: %v", account.ID, err)
		if err := lock.Release(ctx); err != nil {
			s.log.Errorf("failed to release first sync lock for account %s: %v", account.ID, err)
		}
		return false
	}
	s.log.Debugf("scheduled first sync for %s", account.EmailAddress)
	return true
}
