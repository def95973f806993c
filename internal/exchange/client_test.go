package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func okEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Status: "OK", Data: raw})
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, "test-key", "test-secret")
	c.nonce = func() uint64 { return 42 }
	return c
}

func TestClient_SignedHeaders(t *testing.T) {
	var gotKey, gotNonce, gotSig string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotNonce = r.Header.Get("X-Nonce")
		gotSig = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		okEnvelope(t, w, Order{ID: "1", Status: "FILLED"})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.OpenShort(context.Background(), "BTC-USD", dec("0.5"))
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "42", gotNonce)
	// The signature must recompute over the exact wire bytes.
	assert.Equal(t, c.sign("POST", "/api/v1/user/order", gotBody, 42), gotSig)
	assert.NotEmpty(t, gotSig)
}

func TestClient_Balance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/user/balance", r.URL.Path)
		okEnvelope(t, w, map[string]string{
			"equity":                 "100000.25",
			"balance":                "99000",
			"unrealisedPnl":          "1000.25",
			"availableForTrade":      "50000",
			"availableForWithdrawal": "25000.5",
			"marginRatio":            "0.08",
		})
	}))
	defer srv.Close()

	bal, err := newTestClient(srv).Balance(context.Background())
	require.NoError(t, err)
	require.True(t, bal.Equity.Equal(dec("100000.25")))
	require.True(t, bal.AvailableForWithdrawal.Equal(dec("25000.5")))
	require.True(t, bal.MarginRatio.Equal(dec("0.08")))
}

func TestClient_PositionByMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(t, w, []Position{
			{Market: "ETH-USD", Side: SideShort, Size: dec("10")},
			{Market: "BTC-USD", Side: SideShort, Size: dec("1.5"), Value: dec("90000")},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	pos, err := c.Position(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.Equal(t, SideShort, pos.Side)
	require.True(t, pos.Size.Equal(dec("1.5")))

	// No position on that market comes back zero-valued, not as an error.
	pos, err = c.Position(context.Background(), "SOL-USD")
	require.NoError(t, err)
	require.True(t, pos.Size.IsZero())
}

func TestClient_MarketStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/info/markets/BTC-USD/stats", r.URL.Path)
		okEnvelope(t, w, map[string]string{
			"market":      "BTC-USD",
			"markPrice":   "60000",
			"fundingRate": "-0.0001",
		})
	}))
	defer srv.Close()

	stats, err := newTestClient(srv).MarketStats(context.Background(), "BTC-USD")
	require.NoError(t, err)
	require.True(t, stats.FundingRate.IsNegative())
	require.True(t, stats.MarkPrice.Equal(dec("60000")))
}

func TestClient_OrderBodies(t *testing.T) {
	var got orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		okEnvelope(t, w, Order{ID: "1", ExternalID: got.ExternalID, Status: "FILLED"})
	}))
	defer srv.Close()

	c := newTestClient(srv)

	_, err := c.OpenShort(context.Background(), "BTC-USD", dec("0.25"))
	require.NoError(t, err)
	assert.Equal(t, "SELL", got.Side)
	assert.Equal(t, "MARKET", got.Type)
	assert.Equal(t, "0.25", got.Size)
	assert.False(t, got.ReduceOnly)
	assert.NotEmpty(t, got.ExternalID)

	_, err = c.CloseShort(context.Background(), "BTC-USD", dec("0.25"))
	require.NoError(t, err)
	assert.Equal(t, "BUY", got.Side)
	assert.True(t, got.ReduceOnly)
}

func TestClient_PlaceAndWait(t *testing.T) {
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		status := "NEW"
		if polls >= 2 {
			status = "FILLED"
		}
		okEnvelope(t, w, Order{ID: "1", ExternalID: "ext-1", Status: status, FilledSize: dec("0.5")})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	order := Order{ID: "1", ExternalID: "ext-1", Status: "NEW"}

	got, err := c.PlaceAndWait(context.Background(), order, time.Millisecond)
	require.NoError(t, err)
	require.True(t, got.Filled())
	require.GreaterOrEqual(t, polls, 2)
}

func TestClient_PlaceAndWaitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(t, w, Order{ID: "1", ExternalID: "ext-1", Status: "REJECTED"})
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.PlaceAndWait(context.Background(), Order{ID: "1", ExternalID: "ext-1", Status: "NEW"}, time.Millisecond)
	require.ErrorIs(t, err, ErrVenue)
}

func TestClient_PlaceAndWaitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(t, w, Order{ID: "1", ExternalID: "ext-1", Status: "NEW"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestClient(srv)
	_, err := c.PlaceAndWait(ctx, Order{ID: "1", ExternalID: "ext-1", Status: "NEW"}, time.Millisecond)
	require.ErrorIs(t, err, ErrOrderNotFilled)
}

func TestClient_VenueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(envelope{Status: "ERROR", Error: &venueError{Code: 1101, Message: "insufficient margin"}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Balance(context.Background())
	require.ErrorIs(t, err, ErrVenue)
	require.ErrorContains(t, err, "insufficient margin")
}

func TestClient_Withdraw(t *testing.T) {
	var got withdrawRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/user/withdrawal", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		okEnvelope(t, w, Withdrawal{ID: "w-1", ExternalID: got.ExternalID, Amount: dec("5000"), Status: "PENDING"})
	}))
	defer srv.Close()

	wd, err := newTestClient(srv).Withdraw(context.Background(), dec("5000"), "0xvault")
	require.NoError(t, err)
	require.Equal(t, "w-1", wd.ID)
	assert.Equal(t, "5000", got.Amount)
	assert.Equal(t, "0xvault", got.Destination)
	assert.NotEmpty(t, got.ExternalID)
}
