// Package roomsync предоставляет клиент сервиса управления номерами, который хранит
// зеркальные записи бронирований.
package roomsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
)

// ErrNotConfigured возвращается, если адрес сервиса номеров не задан.
var ErrNotConfigured = errors.New("room service client not configured")

// RateLimitedError возвращается, когда сервис номеров ответил 429.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("room service rate limited, retry after %s", e.RetryAfter)
}

// Client инкапсулирует HTTP-взаимодействие с сервисом номеров.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к сервису номеров по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) totalsURL(bookingID string) string {
	return fmt.Sprintf("%s/api/bookings/%s/totals", c.baseURL, url.PathEscape(bookingID))
}

// GetBookingTotals запрашивает суммы, записанные в связанной записи бронирования.
func (c *Client) GetBookingTotals(ctx context.Context, bookingID string) (*model.LinkedTotals, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.totalsURL(bookingID), nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, resp.StatusCode, retryAfter(resp), nil
	case http.StatusNotFound:
		return nil, resp.StatusCode, 0, nil
	case http.StatusOK:
	default:
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result model.LinkedTotals
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}

// PutBookingTotals записывает суммы счёта в связанную запись бронирования.
func (c *Client) PutBookingTotals(ctx context.Context, totals model.LinkedTotals) (int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return 0, 0, ErrNotConfigured
	}

	body, err := json.Marshal(totals)
	if err != nil {
		return 0, 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.totalsURL(totals.BookingID), bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return resp.StatusCode, retryAfter(resp), nil
	case http.StatusOK, http.StatusNoContent:
		return resp.StatusCode, 0, nil
	}

	return resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
