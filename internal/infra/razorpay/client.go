package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

var _ infra.PaymentGateway = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// A rejected request means the gateway is up.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrGatewayRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("gateway circuit changed state")
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}
}

func (c *Client) KeyID() string {
	return c.cfg.KeyID
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent registers a gateway order for amountMinor. reference is our
// order id and is sent as the receipt.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, currency, reference string) (*domain.GatewayIntent, error) {
	if amountMinor <= 0 {
		return nil, domain.NewValidationError("amount", "must be positive")
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.createOrder(ctx, createOrderRequest{
			Amount:   amountMinor,
			Currency: currency,
			Receipt:  reference,
			Notes:    map[string]string{"orderId": reference},
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("razorpay: %v: %w", err, domain.ErrGatewayUnavailable)
		}
		return nil, err
	}

	resp := out.(*createOrderResponse)
	log.Info().Str("order_id", reference).Str("gateway_order_ref", resp.ID).Int64("amount", resp.Amount).
		Msg("gateway order created")

	return &domain.GatewayIntent{
		GatewayOrderRef: resp.ID,
		Amount:          resp.Amount,
		Currency:        resp.Currency,
		KeyID:           c.cfg.KeyID,
	}, nil
}

func (c *Client) createOrder(ctx context.Context, body createOrderRequest) (*createOrderResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("razorpay: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("razorpay: build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: %v: %w", err, domain.ErrGatewayUnavailable)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("razorpay: read response: %v: %w", err, domain.ErrGatewayUnavailable)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("razorpay: status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	case resp.StatusCode >= 400:
		var e errorResponse
		_ = json.Unmarshal(payload, &e)
		desc := e.Error.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("razorpay: %s: %w", desc, domain.ErrGatewayRejected)
	}

	var out createOrderResponse
	if err := json.Unmarshal(payload, &out); err != nil || out.ID == "" {
		return nil, fmt.Errorf("razorpay: malformed order response: %w", domain.ErrGatewayUnavailable)
	}
	return &out, nil
}

// VerifySignature checks hex(HMAC-SHA256(secret, orderRef|paymentRef))
// against signature in constant time.
func (c *Client) VerifySignature(gatewayOrderRef, gatewayPaymentRef, signature string) bool {
	return VerifySignature(c.cfg.KeySecret, gatewayOrderRef, gatewayPaymentRef, signature)
}

func VerifySignature(secret, gatewayOrderRef, gatewayPaymentRef, signature string) bool {
	if secret == "" || gatewayOrderRef == "" || gatewayPaymentRef == "" || signature == "" {
		return false
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(given, sign(secret, gatewayOrderRef, gatewayPaymentRef))
}

// Sign produces the signature the gateway would hand the client.
func Sign(secret, gatewayOrderRef, gatewayPaymentRef string) string {
	return hex.EncodeToString(sign(secret, gatewayOrderRef, gatewayPaymentRef))
}

func sign(secret, orderRef, paymentRef string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return mac.Sum(nil)
}
