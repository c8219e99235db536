// Package repository содержит реализацию хранения счетов в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrInvoiceNotFound возвращается, если счёт не найден или удалён.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceExists возвращается при попытке создать счёт с существующим идентификатором.
	ErrInvoiceExists = errors.New("invoice already exists")
)

// PostgresRepository предоставляет доступ к счетам в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и применяет миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

func withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const invoiceColumns = `id, customer_name, room_number, room_type, check_in, check_out, booking_type, hours,
	nightly_rate, nights, subtotal, discount_amount, tv_remote_fee, service_fee_amount, breakdown_total,
	is_short_stay, expenses_total, total_amount, status, linked_booking_id, sync_pending, created_at, updated_at`

func invoiceArgs(inv *model.Invoice) []any {
	b := inv.Breakdown
	return []any{
		inv.ID, inv.CustomerName, inv.RoomNumber, string(inv.RoomType), inv.CheckIn, inv.CheckOut,
		string(inv.BookingType), inv.Hours,
		b.NightlyRate, b.Nights, b.Subtotal, b.DiscountAmount, b.TVRemoteFee, b.ServiceFeeAmount, b.TotalAmount,
		b.IsShortStay, inv.ExpensesTotal, inv.TotalAmount, string(inv.Status), inv.LinkedBookingID,
		inv.SyncPending, inv.CreatedAt, inv.UpdatedAt,
	}
}

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var (
		inv         model.Invoice
		roomType    string
		bookingType string
		status      string
	)
	b := &inv.Breakdown

	err := row.Scan(
		&inv.ID, &inv.CustomerName, &inv.RoomNumber, &roomType, &inv.CheckIn, &inv.CheckOut,
		&bookingType, &inv.Hours,
		&b.NightlyRate, &b.Nights, &b.Subtotal, &b.DiscountAmount, &b.TVRemoteFee, &b.ServiceFeeAmount, &b.TotalAmount,
		&b.IsShortStay, &inv.ExpensesTotal, &inv.TotalAmount, &status, &inv.LinkedBookingID,
		&inv.SyncPending, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.RoomType = model.RoomType(roomType)
	inv.BookingType = model.BookingType(bookingType)
	inv.Status = model.InvoiceStatus(status)

	return &inv, nil
}

// CreateInvoice сохраняет новый счёт вместе с расходами.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	return withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO invoices (`+invoiceColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
			invoiceArgs(inv)...,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrInvoiceExists, inv.ID)
			}
			return fmt.Errorf("insert invoice: %w", err)
		}

		if err := insertExpenses(ctx, tx, inv); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// UpdateInvoice полностью заменяет сохранённый счёт и его расходы.
func (r *PostgresRepository) UpdateInvoice(ctx context.Context, inv *model.Invoice) error {
	return withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`UPDATE invoices SET
				customer_name = $2, room_number = $3, room_type = $4, check_in = $5, check_out = $6,
				booking_type = $7, hours = $8, nightly_rate = $9, nights = $10, subtotal = $11,
				discount_amount = $12, tv_remote_fee = $13, service_fee_amount = $14, breakdown_total = $15,
				is_short_stay = $16, expenses_total = $17, total_amount = $18, status = $19,
				linked_booking_id = $20, sync_pending = $21, created_at = $22, updated_at = $23
			 WHERE id = $1 AND deleted_at IS NULL`,
			invoiceArgs(inv)...,
		)
		if err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrInvoiceNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM invoice_expenses WHERE invoice_id = $1`, inv.ID); err != nil {
			return fmt.Errorf("delete expenses: %w", err)
		}

		if err := insertExpenses(ctx, tx, inv); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func insertExpenses(ctx context.Context, tx pgx.Tx, inv *model.Invoice) error {
	if len(inv.Expenses) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, e := range inv.Expenses {
		batch.Queue(
			`INSERT INTO invoice_expenses (invoice_id, position, description, amount) VALUES ($1, $2, $3, $4)`,
			inv.ID, i, e.Description, e.Amount,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert expenses: %w", err)
	}
	return nil
}

// GetInvoice возвращает счёт по идентификатору.
func (r *PostgresRepository) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND deleted_at IS NULL`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	byID := map[string]*model.Invoice{inv.ID: inv}
	if err := r.loadExpenses(ctx, []string{inv.ID}, byID); err != nil {
		return nil, err
	}

	return inv, nil
}

// DeleteInvoice скрывает счёт. Удалённые счета не участвуют в выборках.
func (r *PostgresRepository) DeleteInvoice(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// SetInvoiceStatus меняет статус оплаты счёта.
func (r *PostgresRepository) SetInvoiceStatus(ctx context.Context, id string, status model.InvoiceStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// MarkSyncPending отмечает, что связанная запись бронирования требует повторной синхронизации.
func (r *PostgresRepository) MarkSyncPending(ctx context.Context, id string, pending bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invoices SET sync_pending = $2 WHERE id = $1`,
		id, pending,
	)
	if err != nil {
		return fmt.Errorf("mark sync pending: %w", err)
	}
	return nil
}

// ListInvoicesBetween возвращает счета, которые могут пересекаться с интервалом [from, to].
// Выборка грубая: окончательное отнесение к периоду выполняет пакет window.
func (r *PostgresRepository) ListInvoicesBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	return r.listInvoices(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE deleted_at IS NULL
		   AND check_in <= $2
		   AND (check_out IS NULL OR check_out >= $1)
		 ORDER BY check_in`,
		from, to,
	)
}

// ListSyncPending возвращает счета, ожидающие синхронизации связанной записи.
func (r *PostgresRepository) ListSyncPending(ctx context.Context, limit int) ([]model.Invoice, error) {
	return r.listInvoices(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE sync_pending AND deleted_at IS NULL
		 ORDER BY updated_at
		 LIMIT $1`,
		limit,
	)
}

func (r *PostgresRepository) listInvoices(ctx context.Context, query string, args ...any) ([]model.Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var (
		res []*model.Invoice
		ids []string
	)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		res = append(res, inv)
		ids = append(ids, inv.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	byID := make(map[string]*model.Invoice, len(res))
	for _, inv := range res {
		byID[inv.ID] = inv
	}
	if err := r.loadExpenses(ctx, ids, byID); err != nil {
		return nil, err
	}

	out := make([]model.Invoice, 0, len(res))
	for _, inv := range res {
		out = append(out, *inv)
	}
	return out, nil
}

func (r *PostgresRepository) loadExpenses(ctx context.Context, ids []string, byID map[string]*model.Invoice) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT invoice_id, description, amount
		 FROM invoice_expenses
		 WHERE invoice_id = ANY($1)
		 ORDER BY invoice_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			invoiceID string
			e         model.Expense
		)
		if err := rows.Scan(&invoiceID, &e.Description, &e.Amount); err != nil {
			return fmt.Errorf("scan expense: %w", err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.Expenses = append(inv.Expenses, e)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}
