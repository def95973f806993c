package exchange

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/unboundlabs/unbound/pkg/log"
)

// Client talks to the venue's private REST API. Every private request
// carries the account API key and a keccak digest signature over
// method|path|body|nonce.
type Client struct {
	http      *resty.Client
	apiKey    string
	apiSecret []byte
	logger    zerolog.Logger
	nonce     func() uint64
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "unbound-node"),
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		logger:    log.Exchange,
		nonce:     func() uint64 { return uint64(time.Now().UnixNano()) },
	}
}

// envelope is the venue's uniform response wrapper.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *venueError     `json:"error"`
}

type venueError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Balance fetches the account margin state.
func (c *Client) Balance(ctx context.Context) (Balance, error) {
	var out Balance
	if err := c.get(ctx, "/api/v1/user/balance", &out); err != nil {
		return Balance{}, err
	}
	return out, nil
}

// Positions lists all open positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out []Position
	if err := c.get(ctx, "/api/v1/user/positions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Position returns the open position for one market, or a zero position if
// the account holds none there.
func (c *Client) Position(ctx context.Context, market string) (Position, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return Position{}, err
	}
	for _, p := range positions {
		if p.Market == market {
			return p, nil
		}
	}
	return Position{Market: market}, nil
}

// MarketStats fetches mark price and the current funding rate for a market.
func (c *Client) MarketStats(ctx context.Context, market string) (MarketStats, error) {
	var out MarketStats
	if err := c.get(ctx, "/api/v1/info/markets/"+market+"/stats", &out); err != nil {
		return MarketStats{}, err
	}
	return out, nil
}

type orderRequest struct {
	ExternalID string `json:"externalId"`
	Market     string `json:"market"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Size       string `json:"qty"`
	ReduceOnly bool   `json:"reduceOnly"`
}

// OpenShort places a market sell for size base units. The returned order may
// still be partially filled; PlaceAndWait handles confirmation.
func (c *Client) OpenShort(ctx context.Context, market string, size decimal.Decimal) (Order, error) {
	return c.placeOrder(ctx, orderRequest{
		ExternalID: uuid.NewString(),
		Market:     market,
		Side:       "SELL",
		Type:       "MARKET",
		Size:       size.String(),
	})
}

// CloseShort buys back size base units of an existing short, reduce-only so
// it can never flip the position long.
func (c *Client) CloseShort(ctx context.Context, market string, size decimal.Decimal) (Order, error) {
	return c.placeOrder(ctx, orderRequest{
		ExternalID: uuid.NewString(),
		Market:     market,
		Side:       "BUY",
		Type:       "MARKET",
		Size:       size.String(),
		ReduceOnly: true,
	})
}

func (c *Client) placeOrder(ctx context.Context, req orderRequest) (Order, error) {
	var out Order
	if err := c.post(ctx, "/api/v1/user/order", req, &out); err != nil {
		return Order{}, err
	}
	c.logger.Info().
		Str("market", req.Market).
		Str("side", req.Side).
		Str("qty", req.Size).
		Str("order_id", out.ID).
		Str("status", out.Status).
		Msg("order placed")
	return out, nil
}

// GetOrder fetches an order by the client-assigned external id.
func (c *Client) GetOrder(ctx context.Context, externalID string) (Order, error) {
	var out Order
	if err := c.get(ctx, "/api/v1/user/order/external/"+externalID, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

// PlaceAndWait polls an order until it is filled or ctx expires.
func (c *Client) PlaceAndWait(ctx context.Context, order Order, poll time.Duration) (Order, error) {
	if order.Filled() {
		return order, nil
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return order, fmt.Errorf("%w: %s", ErrOrderNotFilled, order.ID)
		case <-ticker.C:
			got, err := c.GetOrder(ctx, order.ExternalID)
			if err != nil {
				c.logger.Warn().Err(err).Str("order_id", order.ID).Msg("poll order")
				continue
			}
			if got.Filled() {
				return got, nil
			}
			if got.Status == "REJECTED" || got.Status == "CANCELLED" {
				return got, fmt.Errorf("%w: order %s %s", ErrVenue, got.ID, got.Status)
			}
		}
	}
}

type withdrawRequest struct {
	ExternalID  string `json:"externalId"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

// Withdraw requests a settlement-asset transfer out of the venue account.
func (c *Client) Withdraw(ctx context.Context, amount decimal.Decimal, destination string) (Withdrawal, error) {
	var out Withdrawal
	req := withdrawRequest{
		ExternalID:  uuid.NewString(),
		Amount:      amount.String(),
		Destination: destination,
	}
	if err := c.post(ctx, "/api/v1/user/withdrawal", req, &out); err != nil {
		return Withdrawal{}, err
	}
	c.logger.Info().
		Str("amount", amount.String()).
		Str("withdrawal_id", out.ID).
		Msg("withdrawal requested")
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, "GET", path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, "POST", path, encoded, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	nonce := c.nonce()

	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetHeader("X-Nonce", strconv.FormatUint(nonce, 10)).
		SetHeader("X-Signature", c.sign(method, path, body, nonce))
	if body != nil {
		req.SetBody(body)
	}

	var env envelope
	req.SetResult(&env).SetError(&env)

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("venue %s %s: %w", method, path, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%w: %s %s: code %d: %s", ErrVenue, method, path, env.Error.Code, env.Error.Message)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s %s: status %s", ErrVenue, method, path, resp.Status())
	}
	if out == nil || env.Data == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode venue response: %w", err)
	}
	return nil
}

// sign computes the keccak digest of method|path|body|nonce keyed with the
// account secret, hex encoded.
func (c *Client) sign(method, path string, body []byte, nonce uint64) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(c.apiSecret)
	h.Write([]byte(method))
	h.Write([]byte("|"))
	h.Write([]byte(path))
	h.Write([]byte("|"))
	h.Write(body)
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatUint(nonce, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
