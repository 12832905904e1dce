package smsman

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Fi44er/otp_store/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrNoAPIKey    = errors.New("smsman api key is not configured")
	ErrNoPrice     = errors.New("no live price for service")
	ErrEmptyNumber = errors.New("smsman returned no number")
)

const (
	waitSMSCode     = "wait_sms"
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
)

// APIError is an {"error_code", "error_msg"} answer from SMS-Man.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smsman: %s: %s", e.Code, e.Message)
}

type Country struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Code  string `json:"code"`
}

// Service is an application with its raw aggregator cost for one country.
type Service struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	CountryID int             `json:"country_id"`
	Cost      decimal.Decimal `json:"cost"`
	Count     int             `json:"count"`
}

type Number struct {
	RequestID string `json:"request_id"`
	Phone     string `json:"number"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	prices     *priceCache
	names      *nameCache
	logger     *utils.Logger
}

func NewClient(baseURL, apiKey string, cacheTTL time.Duration, logger *utils.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		prices:     newPriceCache(cacheTTL),
		names:      newNameCache(cacheTTL),
		logger:     logger,
	}
}

func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	raw, err := c.get(ctx, "/countries", nil)
	if err != nil {
		return nil, err
	}

	var countries []Country
	for id, title := range parseNamed(raw) {
		countries = append(countries, Country{ID: id, Title: title, Code: countryCode(title)})
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].Title < countries[j].Title })
	return countries, nil
}

// Services lists the applications that have a live price in countryID, sorted by name.
func (c *Client) Services(ctx context.Context, countryID int) ([]Service, error) {
	prices, err := c.countryPrices(ctx, countryID)
	if err != nil {
		return nil, err
	}

	names, err := c.applications(ctx)
	if err != nil {
		return nil, err
	}

	var services []Service
	for id, name := range names {
		p, ok := prices[id]
		if !ok {
			continue
		}
		services = append(services, Service{ID: id, Name: name, CountryID: countryID, Cost: p.cost, Count: p.count})
	}
	sort.Slice(services, func(i, j int) bool {
		return strings.ToLower(services[i].Name) < strings.ToLower(services[j].Name)
	})
	return services, nil
}

// Price returns the live cost of one application, served from cache when fresh.
func (c *Client) Price(ctx context.Context, serviceID, countryID int) (*Service, error) {
	prices, err := c.countryPrices(ctx, countryID)
	if err != nil {
		return nil, err
	}
	p, ok := prices[serviceID]
	if !ok || !p.cost.IsPositive() {
		return nil, fmt.Errorf("%w: service %d in country %d", ErrNoPrice, serviceID, countryID)
	}

	// Без названия покупка всё равно возможна.
	names, err := c.applications(ctx)
	if err != nil {
		c.logger.Warnf("No application names for service %d: %v", serviceID, err)
	}
	return &Service{ID: serviceID, Name: names[serviceID], CountryID: countryID, Cost: p.cost, Count: p.count}, nil
}

// applications maps application ids to names, served from cache when fresh.
func (c *Client) applications(ctx context.Context) (map[int]string, error) {
	if names, ok := c.names.get(); ok {
		return names, nil
	}
	raw, err := c.get(ctx, "/applications", nil)
	if err != nil {
		return nil, err
	}
	names := parseNamed(raw)
	c.names.put(names)
	return names, nil
}

func (c *Client) countryPrices(ctx context.Context, countryID int) (map[int]price, error) {
	if prices, ok := c.prices.get(countryID); ok {
		return prices, nil
	}

	raw, err := c.get(ctx, "/get-prices", url.Values{"country_id": {strconv.Itoa(countryID)}})
	if err != nil {
		return nil, err
	}

	prices := parsePrices(raw)
	c.logger.Debugf("SMS-Man: parsed %d prices for country %d", len(prices), countryID)
	if len(prices) > 0 {
		c.prices.put(countryID, prices)
	}
	return prices, nil
}

// Acquire rents a number. It is never retried: a retry could rent a second number.
func (c *Client) Acquire(ctx context.Context, serviceID, countryID int) (*Number, error) {
	raw, err := c.get(ctx, "/get-number", url.Values{
		"application_id": {strconv.Itoa(serviceID)},
		"country_id":     {strconv.Itoa(countryID)},
	})
	if err != nil {
		return nil, err
	}

	obj, _ := raw.(map[string]interface{})
	requestID, _ := asString(obj["request_id"])
	phone, _ := asString(obj["number"])
	if requestID == "" || phone == "" {
		return nil, ErrEmptyNumber
	}
	return &Number{RequestID: requestID, Phone: phone}, nil
}

// PollCode returns the SMS code for a request, or "" while it is still waiting.
func (c *Client) PollCode(ctx context.Context, requestID string) (string, error) {
	raw, err := c.get(ctx, "/get-sms", url.Values{"request_id": {requestID}})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == waitSMSCode {
			return "", nil
		}
		return "", err
	}

	obj, _ := raw.(map[string]interface{})
	code, _ := asString(obj["sms_code"])
	return code, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (interface{}, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to SMS-Man %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read SMS-Man response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SMS-Man %s returned status %d: %s", path, resp.StatusCode, truncate(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		c.logger.Errorf("Failed to decode SMS-Man response: %v\nRaw response: %s", err, truncate(body))
		return nil, fmt.Errorf("invalid SMS-Man response format")
	}

	if obj, ok := raw.(map[string]interface{}); ok {
		code, _ := asString(obj["error_code"])
		msg, _ := asString(obj["error_msg"])
		if code != "" || msg != "" {
			if code == "" {
				code = "error"
			}
			return nil, &APIError{Code: code, Message: msg}
		}
	}
	return raw, nil
}

func truncate(body []byte) string {
	if len(body) > 256 {
		return string(body[:256]) + "..."
	}
	return string(body)
}
