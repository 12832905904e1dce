package pay0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Fi44er/otp_store/utils"
	"github.com/shopspring/decimal"
)

const (
	StatusSuccess   = "SUCCESS"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
	StatusPending   = "PENDING"
)

var ErrNoUserToken = errors.New("pay0 user token is not configured")

// APIError is a well-formed answer with status false.
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pay0 %s: %s", e.Endpoint, e.Message)
}

type OrderRequest struct {
	OrderID        string
	Amount         decimal.Decimal
	CustomerMobile string
	CustomerName   string
	RedirectURL    string
	Remark1        string
	Remark2        string
}

type Order struct {
	OrderID    string `json:"order_id"`
	PaymentURL string `json:"payment_url"`
}

type OrderStatus struct {
	OrderID string
	Status  string
	Amount  decimal.Decimal
}

type Client struct {
	baseURL    string
	userToken  string
	httpClient *http.Client
	logger     *utils.Logger
}

func NewClient(baseURL, userToken string, logger *utils.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userToken:  userToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type envelope struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Amount  json.RawMessage `json:"amount"`
	OrderID string          `json:"order_id"`
}

// ok reports a boolean true status. String statuses belong to the order, not the call.
func (e *envelope) ok() bool {
	var b bool
	if err := json.Unmarshal(e.Status, &b); err == nil {
		return b
	}
	return len(e.Status) > 0
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	name := req.CustomerName
	if name == "" {
		name = "BrandOtp User"
	}

	env, err := c.post(ctx, "/create-order", url.Values{
		"customer_mobile": {req.CustomerMobile},
		"customer_name":   {name},
		"user_token":      {c.userToken},
		"amount":          {req.Amount.StringFixed(2)},
		"order_id":        {req.OrderID},
		"redirect_url":    {req.RedirectURL},
		"remark1":         {req.Remark1},
		"remark2":         {req.Remark2},
	})
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, &APIError{Endpoint: "create-order", Message: env.Message}
	}

	var result struct {
		PaymentURL string `json:"payment_url"`
	}
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			return nil, fmt.Errorf("invalid pay0 create-order result: %w", err)
		}
	}
	if result.PaymentURL == "" {
		return nil, &APIError{Endpoint: "create-order", Message: "no payment url in response"}
	}

	return &Order{OrderID: req.OrderID, PaymentURL: result.PaymentURL}, nil
}

func (c *Client) CheckOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	env, err := c.post(ctx, "/check-order-status", url.Values{
		"user_token": {c.userToken},
		"order_id":   {orderID},
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Status    string          `json:"status"`
		TxnStatus string          `json:"txnStatus"`
		Amount    json.RawMessage `json:"amount"`
		OrderID   string          `json:"order_id"`
	}
	if len(env.Result) > 0 && env.Result[0] == '{' {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			return nil, fmt.Errorf("invalid pay0 check-order-status result: %w", err)
		}
	}

	status := result.Status
	if status == "" {
		status = result.TxnStatus
	}
	amountRaw := result.Amount
	if status == "" {
		// Some responses put the order fields at the top level.
		var top string
		if err := json.Unmarshal(env.Status, &top); err == nil {
			status = top
		}
		amountRaw = env.Amount
	}
	if status == "" {
		if !env.ok() {
			return nil, &APIError{Endpoint: "check-order-status", Message: env.Message}
		}
		status = StatusPending
	}

	st := &OrderStatus{OrderID: orderID, Status: NormalizeStatus(status)}
	if len(amountRaw) > 0 {
		var amount decimal.Decimal
		if err := amount.UnmarshalJSON(amountRaw); err == nil {
			st.Amount = amount
		}
	}
	return st, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (*envelope, error) {
	if c.userToken == "" {
		return nil, ErrNoUserToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to pay0 %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read pay0 response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pay0 %s returned status %d", endpoint, resp.StatusCode)
	}
	if len(body) == 0 {
		return nil, &APIError{Endpoint: endpoint, Message: "empty response"}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Errorf("Failed to decode pay0 response: %v\nRaw response: %s", err, string(body))
		return nil, fmt.Errorf("invalid pay0 response format")
	}
	return &env, nil
}

func NormalizeStatus(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "CANCELED" {
		return StatusCancelled
	}
	return s
}
