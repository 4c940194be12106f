// Package gateway предоставляет клиент внешнего платёжного шлюза для карточных платежей.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Статусы платежа, которые возвращает шлюз.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusSucceeded  = "SUCCEEDED"
	StatusDeclined   = "DECLINED"
	StatusRefunded   = "REFUNDED"
)

const defaultTimeout = 5 * time.Second

var (
	// ErrNotConfigured возвращается при обращении через пустой клиент.
	ErrNotConfigured = errors.New("payment gateway client not configured")
	// ErrUnknownPayment возвращается, если шлюз ещё не знает платёж (ответ 204 или 404).
	ErrUnknownPayment = errors.New("payment is unknown to gateway")
)

// RateLimitError возвращается на ответ 429. RetryAfter равен нулю, если шлюз не прислал паузу.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("payment gateway rate limit, retry after %s", e.RetryAfter)
}

// PaymentStatus описывает ответ шлюза по одному платежу.
type PaymentStatus struct {
	Reference string           `json:"reference"`
	Status    string           `json:"status"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// Client обращается к платёжному шлюзу по HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	now        func() time.Time
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент, например для собственного транспорта или таймаута.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient создаёт клиент шлюза. Адрес без схемы считается http.
func NewClient(address string, opts ...Option) *Client {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if address != "" && !strings.Contains(address, "://") {
		address = "http://" + address
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	if u, err := url.Parse(address); err == nil && u.Host != "" {
		c.baseURL = u
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPaymentStatus запрашивает статус платежа по его ссылке в шлюзе.
func (c *Client) GetPaymentStatus(ctx context.Context, reference string) (*PaymentStatus, error) {
	if c == nil || c.baseURL == nil {
		return nil, ErrNotConfigured
	}

	u := c.baseURL.JoinPath("api", "payments", reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, ErrUnknownPayment
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: c.retryAfter(resp.Header.Get("Retry-After"))}
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result PaymentStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Reference != "" && result.Reference != reference {
		return nil, fmt.Errorf("gateway answered for %q instead of %q", result.Reference, reference)
	}

	return &result, nil
}

// retryAfter разбирает Retry-After в секундах или в виде HTTP-даты.
func (c *Client) retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(c.now()); d > 0 {
			return d
		}
	}
	return 0
}
