package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"
	"eino_voice_shop/src/model"

	"github.com/avast/retry-go/v4"
	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
)

// RawProduct is one product record exactly as the backend sent it
type RawProduct []byte

// AddToCartRequest carries everything the cart backend needs for one add
type AddToCartRequest struct {
	ProductID string
	Quantity  int
	Token     string
	Lat       float64
	Long      float64
}

// ClearCartContext is the fixed device and outlet context sent with clear-cart
type ClearCartContext struct {
	WarehouseID       string  `yaml:"warehouse_id"`
	OutletID          string  `yaml:"outlet_id"`
	DeviceID          string  `yaml:"device_id"`
	IsPanCorner       int     `yaml:"is_pan_corner"`
	Lat               float64 `yaml:"lat"`
	Long              float64 `yaml:"long"`
	OrderDeliveryType int     `yaml:"order_delivery_type"`
}

// DefaultClearCartContext builds the context from commerce settings
func DefaultClearCartContext(cfg model.CommerceConfig) ClearCartContext {
	return ClearCartContext{
		WarehouseID:       cfg.WarehouseID,
		OutletID:          cfg.OutletID,
		DeviceID:          cfg.DeviceID,
		IsPanCorner:       0,
		Lat:               cfg.DefaultLat,
		Long:              cfg.DefaultLong,
		OrderDeliveryType: 1,
	}
}

// CommerceClient is the catalog and cart backend
type CommerceClient interface {
	SearchProducts(ctx context.Context, query string) ([]RawProduct, error)
	AddToCart(ctx context.Context, req AddToCartRequest) (pkg.CartOutcome, error)
	ClearCart(ctx context.Context, token string, cc ClearCartContext) (bool, error)
}

// statusError is a non-2xx answer from the backend
type statusError struct {
	op   string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.op, e.code)
}

// HTTPCommerceClient talks to the commerce REST API through a circuit breaker
type HTTPCommerceClient struct {
	cfg     model.CommerceConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPCommerceClient creates a client; a nil httpClient gets a default one
func NewHTTPCommerceClient(cfg model.CommerceConfig, httpClient *http.Client) *HTTPCommerceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        "commerce-backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Commerce circuit breaker changed state")
		},
	}

	return &HTTPCommerceClient{
		cfg:     cfg,
		client:  httpClient,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// SearchProducts queries the catalog. Searches are idempotent so transient
// failures are retried.
func (c *HTTPCommerceClient) SearchProducts(ctx context.Context, query string) ([]RawProduct, error) {
	endpoint := c.cfg.APIURL + c.cfg.SearchPath + "?" + url.Values{"query": {query}}.Encode()

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			c.setHeaders(req, "")
			body, err = c.do(req, "search")
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.SearchRetries+1),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		return nil, pkg.NewCallError("catalog", "search", err)
	}

	return productRecords(body), nil
}

// AddToCart adds one product for the customer
func (c *HTTPCommerceClient) AddToCart(ctx context.Context, in AddToCartRequest) (pkg.CartOutcome, error) {
	payload, err := sonic.Marshal(map[string]any{
		"product_id":          in.ProductID,
		"quantity":            in.Quantity,
		"deviceId":            c.cfg.DeviceID,
		"lat":                 formatCoord(in.Lat),
		"long":                formatCoord(in.Long),
		"order_delivery_type": 1,
	})
	if err != nil {
		return pkg.CartOutcome{}, fmt.Errorf("failed to marshal add-to-cart payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+c.cfg.AddToCartPath, bytes.NewReader(payload))
	if err != nil {
		return pkg.CartOutcome{}, err
	}
	c.setHeaders(req, in.Token)

	body, err := c.do(req, "add to cart")
	if err != nil {
		return pkg.CartOutcome{}, pkg.NewCallError("cart", "add", err)
	}

	return cartOutcome(body), nil
}

// ClearCart empties the customer's cart. A non-2xx answer is reported as
// ok=false rather than an error.
func (c *HTTPCommerceClient) ClearCart(ctx context.Context, token string, cc ClearCartContext) (bool, error) {
	payload, err := sonic.Marshal(map[string]any{
		"deviceId":            cc.DeviceID,
		"is_pan_corner":       cc.IsPanCorner,
		"lat":                 formatCoord(cc.Lat),
		"long":                formatCoord(cc.Long),
		"order_delivery_type": cc.OrderDeliveryType,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal clear-cart payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+c.cfg.ClearCartPath, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ware_house_id", cc.WarehouseID)
	req.Header.Set("outletId", cc.OutletID)
	req.Header.Set("token", token)

	_, err = c.do(req, "clear cart")
	var se *statusError
	if errors.As(err, &se) {
		return false, nil
	}
	if err != nil {
		return false, pkg.NewCallError("cart", "clear", err)
	}
	return true, nil
}

func (c *HTTPCommerceClient) setHeaders(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ware_house_id", c.cfg.WarehouseID)
	req.Header.Set("outletId", c.cfg.OutletID)
	if token != "" {
		req.Header.Set("token", token)
	}
}

// do sends the request through the breaker and returns the body of a 2xx answer
func (c *HTTPCommerceClient) do(req *http.Request, op string) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{op: op, code: resp.StatusCode}
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func isRetryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// productRecords finds the product array in the loosely shaped search payload
func productRecords(body []byte) []RawProduct {
	if !gjson.ValidBytes(body) {
		return nil
	}

	var list gjson.Result
	for _, path := range []string{"data", "data.products", "products", "@this"} {
		if r := gjson.GetBytes(body, path); r.IsArray() {
			list = r
			break
		}
	}

	var out []RawProduct
	list.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			out = append(out, RawProduct(value.Raw))
		}
		return true
	})
	return out
}

func cartOutcome(body []byte) pkg.CartOutcome {
	outcome := pkg.CartOutcome{OK: true}
	if !gjson.ValidBytes(body) {
		return outcome
	}

	root := gjson.ParseBytes(body)
	for _, flag := range []string{"success", "status"} {
		if r := root.Get(flag); r.Type == gjson.False {
			outcome.OK = false
		}
	}
	outcome.Message = root.Get("message").String()
	if data, ok := root.Value().(map[string]any); ok {
		outcome.Data = data
	}
	return outcome
}

// NormalizeProduct reads a backend record whatever nesting it uses for
// price and image. Missing values stay nil.
func NormalizeProduct(raw RawProduct) pkg.ProductMatch {
	r := gjson.ParseBytes(raw)

	match := pkg.ProductMatch{
		ID:   r.Get("id").String(),
		Name: firstString(r, "name", "title"),
	}
	if match.Name == "" {
		match.Name = "Unknown Product"
	}

	for _, path := range []string{"product_images.0.base_price", "base_price", "price"} {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			if price, err := strconv.ParseFloat(v.String(), 64); err == nil {
				match.Price = &price
				break
			}
		}
	}

	if image := firstString(r, "product_images.0.path", "image"); image != "" {
		match.Image = &image
	}

	return match
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := strings.TrimSpace(r.Get(p).String()); v != "" {
			return v
		}
	}
	return ""
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
