package tasks

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/dto"
	internalerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/internal/utils"
	"github.com/customeros/mailsync/services/gmail/manager"
	"github.com/customeros/mailsync/services/synclock"
)

// SynchronizeEmailAccount runs one incremental pass. While history pages remain the task
// re-dispatches itself with the lock owner and keeps the lock, the final page releases it.
// A continuation renews the lock it was handed and is dropped once the lock was lost.
func (s *Service) SynchronizeEmailAccount(ctx context.Context, event dto.SyncEmailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TasksService.SynchronizeEmailAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, event.AccountID)
	span.LogKV("continuation", event.Continuation)

	account, err := s.loadAccount(ctx, event.AccountID)
	if err != nil || account == nil {
		tracing.TraceErr(span, err)
		return err
	}

	lock, held, err := s.hold(ctx, synclock.NewEmailSyncLock(s.repos.SyncLockRepository, account.ID, s.cfg.SyncLockTTL), event.LockOwner)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if !held {
		if event.LockOwner != "" {
			s.log.Warnf("sync lock for %s was lost, dropping continuation", account.EmailAddress)
		} else {
			s.log.Infof("sync for %s already running", account.EmailAddress)
		}
		return nil
	}

	if !account.IsAuthorized {
		s.log.Infof("not syncing %s, account is not authorized", account.EmailAddress)
		s.release(ctx, lock)
		return nil
	}

	mgr, err := s.newManager(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		s.handleAuthError(ctx, account, err)
		s.release(ctx, lock)
		return nil
	}

	result, err := mgr.Synchronize(ctx, manager.SyncOptions{})
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("sync failed for %s: %v", account.EmailAddress, err)
		s.handleAuthError(ctx, account, err)
		s.release(ctx, lock)
		return nil
	}

	if result.MorePages {
		next := dto.SyncEmailAccount{
			AccountID:    account.ID,
			Continuation: true,
			LockOwner:    lock.Owner(),
			NotBefore:    utils.Now().Add(s.cfg.ContinuationDelay),
		}
		if err := s.publisher.PublishSyncEmailAccount(ctx, next); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to continue sync for %s: %v", account.EmailAddress, err)
			s.release(ctx, lock)
			return err
		}
		s.log.Infof("history page synced for %s, continuing", account.EmailAddress)
		return nil
	}

	s.release(ctx, lock)
	s.log.Infof("sync done for %s", account.EmailAddress)
	return nil
}

// FirstSynchronizeEmailAccount runs a limited full scan. Reaching the limit is a normal exit,
// the scheduler resumes the scan on its next run. The task runs only while it holds the first
// sync lock, either handed over by its dispatcher or taken here.
func (s *Service) FirstSynchronizeEmailAccount(ctx context.Context, event dto.FirstSyncEmailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TasksService.FirstSynchronizeEmailAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, event.AccountID)

	lock, held, err := s.hold(ctx, synclock.NewFirstSyncLock(s.repos.SyncLockRepository, event.AccountID, s.cfg.SyncLockTTL), event.LockOwner)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if !held {
		s.log.Infof("first sync for %s already running", event.AccountID)
		return nil
	}
	defer s.release(ctx, lock)

	account, err := s.loadAccount(ctx, event.AccountID)
	if err != nil || account == nil {
		tracing.TraceErr(span, err)
		return err
	}
	if !account.IsAuthorized {
		s.log.Infof("not syncing %s, account is not authorized", account.EmailAddress)
		return nil
	}

	mgr, err := s.newManager(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		s.handleAuthError(ctx, account, err)
		return nil
	}

	s.log.Debugf("first sync for %s", account.EmailAddress)
	_, err = mgr.Synchronize(ctx, manager.SyncOptions{Limit: s.cfg.PartialSyncLimit})
	switch {
	case errors.Is(err, internalerrors.ErrSyncLimitReached):
		s.log.Debugf("finished partial sync for %s", account.EmailAddress)
	case err != nil:
		tracing.TraceErr(span, err)
		s.log.Errorf("first sync failed for %s: %v", account.EmailAddress, err)
		s.handleAuthError(ctx, account, err)
	}
	return nil
}

// RunSync synchronizes an account in the foreground until no history pages remain.
func (s *Service) RunSync(ctx context.Context, accountID string, full bool) (*manager.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "TasksService.RunSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		return nil, internalerrors.ErrAccountNotFound
	}
	if !account.IsAuthorized {
		return nil, internalerrors.ErrAuth
	}

	lock := synclock.NewEmailSyncLock(s.repos.SyncLockRepository, account.ID, s.cfg.SyncLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if !acquired {
		return nil, internalerrors.ErrSyncInProgress
	}
	defer s.release(ctx, lock)

	mgr, err := s.newManager(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	total := &manager.SyncResult{}
	opts := manager.SyncOptions{FullSync: full}
	for {
		result, err := mgr.Synchronize(ctx, opts)
		if err != nil {
			tracing.TraceErr(span, err)
			s.handleAuthError(ctx, account, err)
			return total, err
		}
		total.FullScan = total.FullScan || result.FullScan
		total.Created += result.Created
		total.Updated += result.Updated
		total.Deleted += result.Deleted
		total.Skipped += result.Skipped
		if !result.MorePages {
			return total, nil
		}
		opts.FullSync = false
	}
}

// loadAccount returns nil for accounts that are gone or deleted.
func (s *Service) loadAccount(ctx context.Context, accountID string) (*models.EmailAccount, error) {
	account, err := s.repos.EmailAccountRepository.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil || account.IsDeleted {
		s.log.Warnf("email account no longer exists: %s", accountID)
		return nil, nil
	}
	return account, nil
}

// hold takes the lock, or renews it when the task was handed the owner of a held lock.
func (s *Service) hold(ctx context.Context, lock *synclock.Lock, owner string) (*synclock.Lock, bool, error) {
	if owner == "" {
		acquired, err := lock.Acquire(ctx)
		return lock, acquired, err
	}
	lock = lock.WithOwner(owner)
	extended, err := lock.Extend(ctx)
	return lock, extended, err
}

func (s *Service) release(ctx context.Context, lock *synclock.Lock) {
	if err := lock.Release(ctx); err != nil {
		s.log.Errorf("failed to release lock %s: %v", lock.Key(), err)
	}
}
