package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/apperr"
	"github.com/ariefcatur/go-batch-orders/internal/inventory"
	"github.com/ariefcatur/go-batch-orders/internal/orders"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

// Client implements orders.InventoryGateway over the inventory service's HTTP API.
// Transport failures and 5xx responses are retried with linear backoff; 4xx never are.
// Deductions carry a request id so a retry is answered from the server's receipt cache.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Retries int
	Backoff time.Duration
	Log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, retries int, backoff time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Retries: retries,
		Backoff: backoff,
		Log:     log,
	}
}

var _ orders.InventoryGateway = (*Client)(nil)

func (c *Client) Batches(ctx context.Context, productCode string) ([]orders.BatchView, error) {
	var out []inventory.Batch
	op := "get batches " + productCode
	if err := c.do(ctx, op, http.MethodGet, "/inventory/"+url.PathEscape(productCode), nil, &out); err != nil {
		return nil, err
	}
	views := make([]orders.BatchView, 0, len(out))
	for _, b := range out {
		views = append(views, orders.BatchView{
			BatchNumber:  b.BatchNumber,
			Quantity:     b.Quantity,
			ExpiryDate:   b.ExpiryDate,
			ReceivedDate: b.ReceivedDate,
			ProductCode:  b.ProductCode,
			ProductName:  b.ProductName,
		})
	}
	return views, nil
}

func (c *Client) Deduct(ctx context.Context, cmd orders.DeductCommand) (orders.DeductResult, error) {
	body, err := json.Marshal(inventory.DeductRequest{
		ProductCode: cmd.ProductCode,
		Quantity:    cmd.Quantity,
		Strategy:    cmd.Strategy,
		RequestID:   cmd.RequestID,
	})
	if err != nil {
		return orders.DeductResult{}, err
	}

	var rc inventory.Receipt
	if err := c.do(ctx, "deduct "+cmd.ProductCode, http.MethodPost, "/inventory/update", body, &rc); err != nil {
		return orders.DeductResult{}, err
	}

	res := orders.DeductResult{
		Success:          rc.Success,
		Message:          rc.Message,
		ProductCode:      rc.ProductCode,
		QuantityDeducted: rc.QuantityDeducted,
	}
	for _, a := range rc.Allocations {
		res.Allocations = append(res.Allocations, orders.AllocationRecord{BatchNumber: a.BatchNumber, Quantity: a.QuantityAllocated})
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	for attempt := 0; ; attempt++ {
		err := c.once(ctx, op, method, path, body, out)

		var rce *apperr.RemoteCallError
		if err == nil || !errors.As(err, &rce) || !rce.Temporary() || attempt >= c.Retries {
			return err
		}
		wait := c.Backoff * time.Duration(attempt+1)
		c.Log.Warn("inventory call failed, retrying",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Duration("wait", wait), zap.Error(err))

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}

func (c *Client) once(ctx context.Context, op, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &apperr.RemoteCallError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &apperr.RemoteCallError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.FromResponse(op, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperr.RemoteCallError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
