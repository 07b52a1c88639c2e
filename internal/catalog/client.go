// Package catalog предоставляет клиент удалённого сервиса каталога товаров.
// Клиент реализует резервирование и возврат остатков через обновление склада
// с проверкой ожидаемого значения.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/mmeshcher/furniture-store/internal/model"
)

const defaultMaxAttempts = 3

var (
	// ErrProductNotFound возвращается, если каталог не знает товар.
	ErrProductNotFound = fmt.Errorf("catalog product %w", model.ErrNotFound)
	// ErrStockConflict возвращается, если остаток изменился между чтением и записью.
	ErrStockConflict = errors.New("catalog stock changed concurrently")
)

// Product описывает товар в ответе каталога.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stockQuantity"`
}

type stockUpdate struct {
	Stock         int `json:"stockQuantity"`
	ExpectedStock int `json:"expectedStockQuantity"`
}

// Client инкапсулирует HTTP-взаимодействие с сервисом каталога.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	maxAttempts int
	logger      *zap.Logger
}

// NewClient создаёт HTTP-клиент для обращения к каталогу по указанному адресу.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "catalog_breaker",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			// Ответы 404 и 409 говорят о данных, а не о недоступности каталога.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrStockConflict)
			},
		}),
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}
}

// FindProduct запрашивает товар по идентификатору.
func (c *Client) FindProduct(ctx context.Context, productID int64) (*Product, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getProduct(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Product), nil
}

// UpdateStock записывает новый остаток, если текущий совпадает с expected.
func (c *Client) UpdateStock(ctx context.Context, productID int64, expected, stock int) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.putStock(ctx, productID, expected, stock)
	})
	return err
}

// Reserve списывает quantity единиц товара. При конкурентном изменении остатка
// чтение и запись повторяются ограниченное число раз.
func (c *Client) Reserve(ctx context.Context, productID int64, quantity int) (model.ProductSnapshot, error) {
	if quantity <= 0 {
		return model.ProductSnapshot{}, fmt.Errorf("%w: quantity must be positive", model.ErrInvalidArgument)
	}

	var snapshot model.ProductSnapshot
	err := c.adjust(ctx, productID, func(p *Product) (int, error) {
		if p.Stock < quantity {
			return 0, &model.StockError{ProductID: productID, Requested: quantity, Available: p.Stock}
		}
		snapshot = model.ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price}
		return p.Stock - quantity, nil
	})
	if err != nil {
		return model.ProductSnapshot{}, err
	}
	return snapshot, nil
}

// Release возвращает quantity единиц товара в каталог.
func (c *Client) Release(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", model.ErrInvalidArgument)
	}
	return c.adjust(ctx, productID, func(p *Product) (int, error) {
		return p.Stock + quantity, nil
	})
}

func (c *Client) adjust(ctx context.Context, productID int64, next func(p *Product) (int, error)) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var p *Product
		p, err = c.FindProduct(ctx, productID)
		if err != nil {
			return err
		}

		stock, nextErr := next(p)
		if nextErr != nil {
			return nextErr
		}

		err = c.UpdateStock(ctx, productID, p.Stock, stock)
		if !errors.Is(err, ErrStockConflict) {
			return err
		}
		c.logger.Debug("catalog stock conflict, retrying",
			zap.Int64("product_id", productID),
			zap.Int("attempt", attempt),
		)
	}
	return err
}

func (c *Client) getProduct(ctx context.Context, productID int64) (*Product, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("catalog client not configured")
	}

	url := fmt.Sprintf("%s/api/products/%d", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("catalog rate limited, retry after %s", retryAfter(resp))
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var p Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &p, nil
}

func (c *Client) putStock(ctx context.Context, productID int64, expected, stock int) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("catalog client not configured")
	}

	body, err := json.Marshal(stockUpdate{Stock: stock, ExpectedStock: expected})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/api/products/%d/stock", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	case http.StatusConflict:
		return ErrStockConflict
	case http.StatusTooManyRequests:
		return fmt.Errorf("catalog rate limited, retry after %s", retryAfter(resp))
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
