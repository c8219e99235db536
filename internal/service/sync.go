package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/roomsync"
)

// StartSyncRetries периодически досинхронизирует связанные записи счетов, помеченных
// как ожидающие синхронизации. Блокируется до отмены контекста.
func (s *Service) StartSyncRetries(ctx context.Context) {
	if s.reconciler == nil {
		return
	}

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processSyncBatch(ctx)
		}
	}
}

func (s *Service) processSyncBatch(ctx context.Context) {
	pending, err := s.repo.ListSyncPending(ctx, syncBatchSize)
	if err != nil {
		s.logger.Error("list sync pending invoices", zap.Error(err))
		return
	}

	for i := range pending {
		inv := &pending[i]

		err := s.syncLinkedRecord(ctx, inv)

		var rateLimited *roomsync.RateLimitedError
		if errors.As(err, &rateLimited) {
			if rateLimited.RetryAfter > 0 {
				timer := time.NewTimer(rateLimited.RetryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}
		if err != nil {
			s.logger.Warn("linked record retry failed", zap.String("invoiceID", inv.ID), zap.Error(err))
			continue
		}

		if err := s.repo.MarkSyncPending(ctx, inv.ID, false); err != nil {
			s.logger.Error("clear sync pending", zap.String("invoiceID", inv.ID), zap.Error(err))
			continue
		}
		s.logger.Info("linked record synced", zap.String("invoiceID", inv.ID))
	}
}

// linkedRecordChecker реализуется синхронизаторами, которые умеют сверить связанную запись без записи в неё.
type linkedRecordChecker interface {
	LinkedRecordInSync(ctx context.Context, inv *model.Invoice) (bool, error)
}

func (s *Service) syncLinkedRecord(ctx context.Context, inv *model.Invoice) error {
	if checker, ok := s.reconciler.(linkedRecordChecker); ok {
		inSync, err := checker.LinkedRecordInSync(ctx, inv)
		if err != nil {
			return err
		}
		if inSync {
			return nil
		}
	}
	return s.reconciler.ReconcileLinkedRecord(ctx, inv)
}
