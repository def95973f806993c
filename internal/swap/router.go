package swap

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/holiman/uint256"
)

// Router is an Executor backed by an external aggregator's HTTP API. Amounts
// cross the wire as decimal strings; the route blob is passed through
// base64-encoded and never inspected.
type Router struct {
	http *resty.Client
}

func NewRouter(baseURL string) *Router {
	return &Router{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json"),
	}
}

type routerSwapRequest struct {
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
	MinBuy     string `json:"minBuyAmount,omitempty"`
	Taker      string `json:"taker"`
	Route      string `json:"route,omitempty"`
}

type routerSwapResponse struct {
	BuyAmount string `json:"buyAmount"`
	Route     string `json:"route,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (r *Router) Quote(ctx context.Context, req Request) (*uint256.Int, error) {
	return r.call(ctx, "/swap/v1/quote", req)
}

func (r *Router) Swap(ctx context.Context, req Request) (*uint256.Int, error) {
	out, err := r.call(ctx, "/swap/v1/execute", req)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, ErrZeroOutput
	}
	if req.MinOut != nil && out.Lt(req.MinOut) {
		return nil, ErrSlippageExceeded
	}
	return out, nil
}

func (r *Router) call(ctx context.Context, path string, req Request) (*uint256.Int, error) {
	body := routerSwapRequest{
		SellToken:  req.FromToken,
		BuyToken:   req.ToToken,
		SellAmount: req.Amount.Dec(),
		Taker:      string(req.Owner),
		Route:      base64.StdEncoding.EncodeToString(req.Route),
	}
	if req.MinOut != nil {
		body.MinBuy = req.MinOut.Dec()
	}

	var out routerSwapResponse
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("aggregator %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("aggregator %s: status %s", path, resp.Status())
	}
	if out.Error != "" {
		return nil, fmt.Errorf("aggregator %s: %s", path, out.Error)
	}

	amount, err := uint256.FromDecimal(out.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("parse buy amount %q: %w", out.BuyAmount, err)
	}
	return amount, nil
}
