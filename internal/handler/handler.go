// Package handler содержит HTTP-обработчики операторского API сервиса LodgeEase.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/invoice"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/middleware"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/repository"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/service"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Quote(ctx context.Context, stay model.StayRequest) (model.CostBreakdown, error)
	CreateInvoice(ctx context.Context, stay model.StayRequest, extras invoice.Extras) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, stay model.StayRequest, extras invoice.Extras) (*model.Invoice, error)
	SetStatus(ctx context.Context, id string, status model.InvoiceStatus) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	BillsDue(ctx context.Context, day time.Time) ([]model.Invoice, error)
	MonthlyReport(ctx context.Context, year int, month time.Month) (model.MonthlyReport, error)
	EstimateMonth(ctx context.Context, year int, month time.Month) (model.MonthlyReport, error)
}

// Handler реализует HTTP-обработчики операторского API.
type Handler struct {
	service      Service
	logger       *zap.Logger
	operatorAuth *middleware.OperatorAuth
	loc          *time.Location
	now          func() time.Time
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.OperatorAuth, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		service:      s,
		logger:       logger,
		operatorAuth: auth,
		loc:          loc,
		now:          time.Now,
	}
}

type expenseRequest struct {
	Description string          `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"amount"`
}

type stayRequest struct {
	CheckIn         time.Time        `json:"check_in" validate:"required"`
	CheckOut        *time.Time       `json:"check_out,omitempty"`
	BookingType     string           `json:"booking_type" validate:"omitempty,oneof=standard night_promo hourly"`
	DurationHours   *int             `json:"duration_hours,omitempty" validate:"omitempty,min=1"`
	HasTVRemote     bool             `json:"has_tv_remote"`
	CustomerName    string           `json:"customer_name" validate:"max=200"`
	RoomNumber      string           `json:"room_number" validate:"max=20"`
	RoomType        string           `json:"room_type" validate:"omitempty,oneof=standard deluxe family suite"`
	LinkedBookingID *string          `json:"linked_booking_id,omitempty"`
	Expenses        []expenseRequest `json:"expenses,omitempty" validate:"omitempty,dive"`
}

func (r stayRequest) toModel() (model.StayRequest, invoice.Extras) {
	bookingType := model.BookingType(r.BookingType)
	if bookingType == "" {
		bookingType = model.BookingTypeStandard
	}

	stay := model.StayRequest{
		CheckIn:         r.CheckIn,
		CheckOut:        r.CheckOut,
		BookingType:     bookingType,
		DurationHours:   r.DurationHours,
		HasTVRemote:     r.HasTVRemote,
		CustomerName:    r.CustomerName,
		RoomNumber:      r.RoomNumber,
		RoomType:        model.RoomType(r.RoomType),
		LinkedBookingID: r.LinkedBookingID,
	}

	var extras invoice.Extras
	if r.Expenses != nil {
		extras.Expenses = make([]model.Expense, 0, len(r.Expenses))
		for _, e := range r.Expenses {
			extras.Expenses = append(extras.Expenses, model.Expense{Description: e.Description, Amount: e.Amount})
		}
	}

	return stay, extras
}

type invoiceResponse struct {
	ID              string              `json:"id"`
	CustomerName    string              `json:"customer_name"`
	RoomNumber      string              `json:"room_number"`
	RoomType        string              `json:"room_type"`
	CheckIn         string              `json:"check_in"`
	CheckOut        *string             `json:"check_out,omitempty"`
	BookingType     string              `json:"booking_type"`
	Hours           int                 `json:"hours"`
	Breakdown       model.CostBreakdown `json:"breakdown"`
	Expenses        []model.Expense     `json:"expenses"`
	ExpensesTotal   decimal.Decimal     `json:"expenses_total"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Status          string              `json:"status"`
	LinkedBookingID *string             `json:"linked_booking_id,omitempty"`
	SyncPending     bool                `json:"sync_pending"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at"`
}

func newInvoiceResponse(inv *model.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:              inv.ID,
		CustomerName:    inv.CustomerName,
		RoomNumber:      inv.RoomNumber,
		RoomType:        string(inv.RoomType),
		CheckIn:         inv.CheckIn.Format(time.RFC3339),
		BookingType:     string(inv.BookingType),
		Hours:           inv.Hours,
		Breakdown:       inv.Breakdown,
		Expenses:        inv.Expenses,
		ExpensesTotal:   inv.ExpensesTotal,
		TotalAmount:     inv.TotalAmount,
		Status:          string(inv.Status),
		LinkedBookingID: inv.LinkedBookingID,
		SyncPending:     inv.SyncPending,
		CreatedAt:       inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       inv.UpdatedAt.Format(time.RFC3339),
	}
	if inv.CheckOut != nil {
		s := inv.CheckOut.Format(time.RFC3339)
		resp.CheckOut = &s
	}
	if resp.Expenses == nil {
		resp.Expenses = []model.Expense{}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) decodeStay(w http.ResponseWriter, r *http.Request) (stayRequest, bool) {
	var req stayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return req, false
	}

	if err := validation.Struct(req); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, verr)
			return req, false
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return req, false
	}

	return req, true
}

// writeError переводит ошибки сервиса в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	if invalid := invoice.AsInvalidStay(err); invalid != nil {
		writeJSON(w, http.StatusUnprocessableEntity, validation.Error{Fields: invalid.Fields()})
		return
	}

	switch {
	case errors.Is(err, invoice.ErrInvalidStay):
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrInvoiceNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, repository.ErrInvoiceExists):
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidPeriod), errors.Is(err, service.ErrInvalidStatus):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	case errors.Is(err, service.ErrLinkedRecordSync):
		h.logger.Warn(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func operatorField(r *http.Request) zap.Field {
	operator, _ := middleware.OperatorFromContext(r.Context())
	return zap.String("operator", operator)
}

// Quote рассчитывает стоимость проживания без создания счёта.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeStay(w, r)
	if !ok {
		return
	}

	stay, _ := req.toModel()
	breakdown, err := h.service.Quote(r.Context(), stay)
	if err != nil {
		h.writeError(w, err, "quote error")
		return
	}

	writeJSON(w, http.StatusOK, breakdown)
}

// CreateInvoice рассчитывает и сохраняет новый счёт.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeStay(w, r)
	if !ok {
		return
	}

	stay, extras := req.toModel()
	inv, err := h.service.CreateInvoice(r.Context(), stay, extras)
	if err != nil {
		h.writeError(w, err, "create invoice error")
		return
	}

	h.logger.Info("invoice created", zap.String("invoiceID", inv.ID), operatorField(r))
	writeJSON(w, http.StatusCreated, newInvoiceResponse(inv))
}

// GetInvoice возвращает счёт по идентификатору.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "get invoice error")
		return
	}

	writeJSON(w, http.StatusOK, newInvoiceResponse(inv))
}

// UpdateInvoice полностью пересчитывает счёт.
func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeStay(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	stay, extras := req.toModel()
	inv, err := h.service.UpdateInvoice(r.Context(), id, stay, extras)
	if err != nil {
		h.writeError(w, err, "update invoice error")
		return
	}

	h.logger.Info("invoice recomputed", zap.String("invoiceID", id), operatorField(r))
	writeJSON(w, http.StatusOK, newInvoiceResponse(inv))
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=unpaid paid pending cancelled"`
}

// SetStatus меняет статус оплаты счёта.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, verr)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	inv, err := h.service.SetStatus(r.Context(), id, model.InvoiceStatus(req.Status))
	if err != nil {
		h.writeError(w, err, "set status error")
		return
	}

	h.logger.Info("invoice status changed", zap.String("invoiceID", id), zap.String("status", req.Status), operatorField(r))
	writeJSON(w, http.StatusOK, newInvoiceResponse(inv))
}

// DeleteInvoice скрывает счёт.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteInvoice(r.Context(), id); err != nil {
		h.writeError(w, err, "delete invoice error")
		return
	}

	h.logger.Info("invoice deleted", zap.String("invoiceID", id), operatorField(r))
	w.WriteHeader(http.StatusNoContent)
}

// BillsDue возвращает счета, проживание по которым приходится на указанный день (по умолчанию сегодняшний).
func (h *Handler) BillsDue(w http.ResponseWriter, r *http.Request) {
	day := h.now().In(h.loc)
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, v, h.loc)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		day = parsed
	}

	invoices, err := h.service.BillsDue(r.Context(), day)
	if err != nil {
		h.writeError(w, err, "bills due error")
		return
	}

	if len(invoices) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		resp = append(resp, newInvoiceResponse(&invoices[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// MonthlyReport возвращает отчёт о выручке за месяц. Оценочный отчёт строится только
// при явном параметре estimate=true.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	estimate, _ := strconv.ParseBool(r.URL.Query().Get("estimate"))

	var rep model.MonthlyReport
	if estimate {
		rep, err = h.service.EstimateMonth(r.Context(), year, time.Month(month))
	} else {
		rep, err = h.service.MonthlyReport(r.Context(), year, time.Month(month))
	}
	if err != nil {
		h.writeError(w, err, "monthly report error")
		return
	}

	writeJSON(w, http.StatusOK, rep)
}
