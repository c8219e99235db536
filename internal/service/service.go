// Package service реализует бизнес-логику учёта счетов и отчётов о выручке.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/invoice"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/pricing"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/rate"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/report"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/window"
)

var (
	// ErrLinkedRecordSync возвращается, если связанную запись бронирования не удалось обновить.
	ErrLinkedRecordSync = errors.New("linked record sync failed")
	// ErrInvalidPeriod возвращается для некорректного года или месяца отчёта.
	ErrInvalidPeriod = errors.New("invalid report period")
	// ErrInvalidStatus возвращается для неизвестного статуса счёта.
	ErrInvalidStatus = errors.New("invalid invoice status")
)

const syncBatchSize = 100

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *model.Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
	SetInvoiceStatus(ctx context.Context, id string, status model.InvoiceStatus) error
	MarkSyncPending(ctx context.Context, id string, pending bool) error
	ListInvoicesBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error)
	ListSyncPending(ctx context.Context, limit int) ([]model.Invoice, error)
}

// Service содержит бизнес-логику учёта счетов.
type Service struct {
	repo       Repository
	reconciler invoice.LinkedRecordReconciler
	logger     *zap.Logger

	calc       *pricing.Calculator
	builder    *invoice.Builder
	aggregator *report.Aggregator

	now          func() time.Time
	syncInterval time.Duration
}

type options struct {
	policy       rate.Policy
	loc          *time.Location
	builderOpts  []invoice.Option
	now          func() time.Time
	syncInterval time.Duration
}

// Option настраивает Service.
type Option func(*options)

// WithLocation задаёт часовой пояс для дневных и месячных окон.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithInvoiceOptions передаёт настройки сборщику счетов.
func WithInvoiceOptions(opts ...invoice.Option) Option {
	return func(o *options) { o.builderOpts = append(o.builderOpts, opts...) }
}

// WithClock задаёт источник текущего времени.
func WithClock(fn func() time.Time) Option {
	return func(o *options) { o.now = fn }
}

// WithSyncInterval задаёт период повторной синхронизации связанных записей.
func WithSyncInterval(d time.Duration) Option {
	return func(o *options) { o.syncInterval = d }
}

// NewService создаёт сервис. Все компоненты расчёта получают одну и ту же тарифную политику.
func NewService(repo Repository, reconciler invoice.LinkedRecordReconciler, logger *zap.Logger, opts ...Option) *Service {
	o := options{
		policy:       rate.Default(),
		loc:          time.UTC,
		now:          time.Now,
		syncInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	calc := pricing.NewCalculator(o.policy)

	return &Service{
		repo:         repo,
		reconciler:   reconciler,
		logger:       logger,
		calc:         calc,
		builder:      invoice.NewBuilder(calc, o.builderOpts...),
		aggregator:   report.NewAggregator(o.policy, o.loc, logger),
		now:          o.now,
		syncInterval: o.syncInterval,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) warnRateOverride(stay model.StayRequest) {
	in := invoice.PricingInput(stay)
	if s.calc.RateOverridden(in) {
		s.logger.Warn("booking type overridden by night count",
			zap.String("bookingType", string(stay.BookingType)),
			zap.Int("nights", in.Nights),
		)
	}
}

// Quote рассчитывает стоимость проживания без сохранения.
func (s *Service) Quote(ctx context.Context, stay model.StayRequest) (model.CostBreakdown, error) {
	breakdown, err := s.builder.Quote(stay)
	if err != nil {
		return model.CostBreakdown{}, err
	}
	s.warnRateOverride(stay)
	return breakdown, nil
}

// GetInvoice возвращает счёт по идентификатору.
func (s *Service) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// CreateInvoice рассчитывает и сохраняет новый счёт, затем синхронизирует связанную запись.
// Если синхронизация не удалась, созданный счёт удаляется.
func (s *Service) CreateInvoice(ctx context.Context, stay model.StayRequest, extras invoice.Extras) (*model.Invoice, error) {
	inv, err := s.builder.Build(nil, stay, extras)
	if err != nil {
		return nil, err
	}
	s.warnRateOverride(stay)

	if err := s.repo.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("save invoice: %w", err)
	}

	err = s.twoPhase(ctx, inv, nil, func(ctx context.Context) error {
		return s.repo.DeleteInvoice(ctx, inv.ID)
	})
	if err != nil {
		return nil, err
	}

	return inv, nil
}

// UpdateInvoice полностью пересчитывает счёт по новым входным данным.
// При сбое синхронизации связанной записи восстанавливается предыдущая версия счёта.
func (s *Service) UpdateInvoice(ctx context.Context, id string, stay model.StayRequest, extras invoice.Extras) (*model.Invoice, error) {
	prev, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := s.builder.Build(prev, stay, extras)
	if err != nil {
		return nil, err
	}
	s.warnRateOverride(stay)

	if err := s.repo.UpdateInvoice(ctx, next); err != nil {
		return nil, fmt.Errorf("save invoice: %w", err)
	}

	err = s.twoPhase(ctx, next, prev, func(ctx context.Context) error {
		return s.repo.UpdateInvoice(ctx, prev)
	})
	if err != nil {
		return nil, err
	}

	return next, nil
}

// SetStatus меняет статус счёта и переносит его в связанную запись.
func (s *Service) SetStatus(ctx context.Context, id string, status model.InvoiceStatus) (*model.Invoice, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	prev, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *prev
	next.Status = status
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.SetInvoiceStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("save status: %w", err)
	}

	err = s.twoPhase(ctx, &next, prev, func(ctx context.Context) error {
		return s.repo.SetInvoiceStatus(ctx, id, prev.Status)
	})
	if err != nil {
		return nil, err
	}

	return &next, nil
}

// DeleteInvoice скрывает счёт. Сначала связанная запись получает отменённые нулевые суммы,
// затем счёт удаляется. Если удаление не удалось, связанной записи возвращаются прежние суммы.
func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	prev, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}

	if s.reconciler != nil {
		gone := *prev
		gone.Status = model.InvoiceStatusCancelled
		gone.TotalAmount = decimal.Zero
		if err := s.reconciler.ReconcileLinkedRecord(ctx, &gone); err != nil {
			s.logger.Warn("linked record sync failed, invoice kept", zap.String("invoiceID", id), zap.Error(err))
			return fmt.Errorf("%w: %w", ErrLinkedRecordSync, err)
		}
	}

	if err := s.repo.DeleteInvoice(ctx, id); err != nil {
		if s.reconciler != nil {
			if restoreErr := s.reconciler.RestoreLinkedRecord(ctx, prev); restoreErr != nil {
				s.logger.Error("restore linked record failed, scheduling linked record sync",
					zap.String("invoiceID", id),
					zap.Error(restoreErr),
				)
				if markErr := s.repo.MarkSyncPending(ctx, id, true); markErr != nil {
					s.logger.Error("mark sync pending failed", zap.String("invoiceID", id), zap.Error(markErr))
				}
			}
		}
		return fmt.Errorf("delete invoice: %w", err)
	}

	return nil
}

// twoPhase выполняет вторую фазу записи: синхронизацию связанной записи бронирования.
// Первая фаза (запись счёта) к этому моменту уже выполнена. При сбое вызывается undo;
// если и он не удался, счёт помечается для фоновой досинхронизации.
func (s *Service) twoPhase(ctx context.Context, next, prev *model.Invoice, undo func(context.Context) error) error {
	if s.reconciler == nil {
		return nil
	}

	syncErr := s.reconciler.ReconcileLinkedRecord(ctx, next)
	if syncErr == nil {
		return nil
	}

	s.logger.Warn("linked record sync failed, rolling back invoice",
		zap.String("invoiceID", next.ID),
		zap.Error(syncErr),
	)

	if prev != nil {
		if err := s.reconciler.RestoreLinkedRecord(ctx, prev); err != nil {
			s.logger.Warn("restore linked record failed", zap.String("invoiceID", prev.ID), zap.Error(err))
		}
	}

	if err := undo(ctx); err != nil {
		s.logger.Error("invoice rollback failed, scheduling linked record sync",
			zap.String("invoiceID", next.ID),
			zap.Error(err),
		)
		if markErr := s.repo.MarkSyncPending(ctx, next.ID, true); markErr != nil {
			s.logger.Error("mark sync pending failed", zap.String("invoiceID", next.ID), zap.Error(markErr))
		}
	}

	return fmt.Errorf("%w: %w", ErrLinkedRecordSync, syncErr)
}

// BillsDue возвращает неотменённые счета, проживание по которым пересекается с днём day.
func (s *Service) BillsDue(ctx context.Context, day time.Time) ([]model.Invoice, error) {
	w := window.Day(day.In(s.aggregator.Location()))

	candidates, err := s.repo.ListInvoicesBetween(ctx, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	due := make([]model.Invoice, 0, len(candidates))
	for _, inv := range window.Filter(candidates, report.Span, w) {
		if inv.Status == model.InvoiceStatusCancelled {
			continue
		}
		due = append(due, inv)
	}
	return due, nil
}

func validPeriod(year int, month time.Month) error {
	if year < 1 || month < time.January || month > time.December {
		return fmt.Errorf("%w: %d-%02d", ErrInvalidPeriod, year, month)
	}
	return nil
}

// MonthlyReport строит отчёт о выручке за месяц по сохранённым счетам.
func (s *Service) MonthlyReport(ctx context.Context, year int, month time.Month) (model.MonthlyReport, error) {
	if err := validPeriod(year, month); err != nil {
		return model.MonthlyReport{}, err
	}

	loc := s.aggregator.Location()
	py, pm := window.PreviousMonth(year, month)
	from := window.Month(py, pm, loc).Start
	to := window.Month(year, month, loc).End

	invoices, err := s.repo.ListInvoicesBetween(ctx, from, to)
	if err != nil {
		return model.MonthlyReport{}, fmt.Errorf("list invoices: %w", err)
	}

	return s.aggregator.AggregateMonth(invoices, year, month), nil
}

// EstimateMonth строит оценочный отчёт по фиксированным допущениям.
func (s *Service) EstimateMonth(ctx context.Context, year int, month time.Month) (model.MonthlyReport, error) {
	if err := validPeriod(year, month); err != nil {
		return model.MonthlyReport{}, err
	}
	return s.aggregator.Estimate(year, month), nil
}
