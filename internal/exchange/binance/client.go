package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthAPIKey
	AuthSigned
)

// Client is a signed Binance spot REST client covering the surface the
// engine needs: market orders, ticker snapshots, rolling-window change
// and last-fill lookup.
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsBaseURL string

	recvWindow time.Duration
	httpClient *http.Client
}

type Options struct {
	APIKey         string
	APISecret      string
	RestBaseURL    string
	WSBaseURL      string
	RecvWindowMs   int64
	HTTPTimeoutSec int64
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, errors.New("api_key/api_secret required")
	}
	timeout := 15 * time.Second
	if opts.HTTPTimeoutSec > 0 {
		timeout = time.Duration(opts.HTTPTimeoutSec) * time.Second
	}
	return &Client{
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		baseURL:    strings.TrimRight(opts.RestBaseURL, "/"),
		wsBaseURL:  strings.TrimRight(opts.WSBaseURL, "/"),
		recvWindow: time.Duration(opts.RecvWindowMs) * time.Millisecond,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Name() string { return "binance" }

func (c *Client) Close() error { return nil }

// PlaceOrder submits a market order. Quantity is sent with up to eight
// decimal places, the finest step Binance spot accepts.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side core.Side, qty decimal.Decimal) (core.OrderAck, error) {
	if symbol == "" {
		return core.OrderAck{}, errors.New("symbol required")
	}
	if qty.Cmp(decimal.Zero) <= 0 {
		return core.OrderAck{}, errors.New("qty must be > 0")
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", qty.Round(8).String())
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v3/order", params, AuthSigned)
	if err != nil {
		return core.OrderAck{}, err
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.OrderAck{}, err
	}
	executed, _ := decimal.NewFromString(resp.ExecutedQty)
	return core.OrderAck{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Symbol:  resp.Symbol,
		Side:    core.Side(resp.Side),
		Qty:     executed,
	}, nil
}

// TickerSnapshot pulls the 24h statistics for every spot pair.
func (c *Client) TickerSnapshot(ctx context.Context) ([]core.Ticker, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/24hr", url.Values{}, AuthNone)
	if err != nil {
		return nil, err
	}
	var resp []ticker24hResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	tickers := make([]core.Ticker, 0, len(resp))
	for _, tk := range resp {
		last, err := decimal.NewFromString(tk.LastPrice)
		if err != nil {
			continue
		}
		volume, _ := decimal.NewFromString(tk.QuoteVolume)
		tickers = append(tickers, core.Ticker{
			Symbol:      tk.Symbol,
			LastPrice:   last,
			QuoteVolume: volume,
		})
	}
	return tickers, nil
}

// PercentChange reports the rolling-window price change of one pair.
func (c *Client) PercentChange(ctx context.Context, symbol string, window time.Duration) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("windowSize", windowSizeParam(window))
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker", params, AuthNone)
	if err != nil {
		return decimal.Zero, err
	}
	var resp rollingTickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(resp.PriceChangePercent)
}

func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/price", params, AuthNone)
	if err != nil {
		return decimal.Zero, err
	}
	var resp tickerPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(resp.Price)
}

// LastFill returns the most recent account trade on the pair, consulted
// by the execution guard after an unconfirmed order call.
func (c *Client) LastFill(ctx context.Context, symbol string) (core.Fill, bool, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", "1")
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/myTrades", params, AuthSigned)
	if err != nil {
		return core.Fill{}, false, err
	}
	var resp []myTradeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Fill{}, false, err
	}
	if len(resp) == 0 {
		return core.Fill{}, false, nil
	}
	last := resp[len(resp)-1]
	price, err := decimal.NewFromString(last.Price)
	if err != nil {
		return core.Fill{}, false, err
	}
	qty, err := decimal.NewFromString(last.Qty)
	if err != nil {
		return core.Fill{}, false, err
	}
	side := core.Sell
	if last.IsBuyer {
		side = core.Buy
	}
	return core.Fill{
		Symbol: last.Symbol,
		Side:   side,
		Price:  price,
		Qty:    qty,
		Time:   time.UnixMilli(last.Time).UTC(),
	}, true, nil
}

// windowSizeParam maps a duration onto Binance windowSize values
// (1m..59m, 1h..23h, 1d..7d), clamping to the nearest supported unit.
func windowSizeParam(window time.Duration) string {
	switch {
	case window <= 0:
		return "1d"
	case window < time.Hour:
		m := int(window / time.Minute)
		if m < 1 {
			m = 1
		}
		return strconv.Itoa(m) + "m"
	case window < 24*time.Hour:
		return strconv.Itoa(int(window/time.Hour)) + "h"
	default:
		d := int(window / (24 * time.Hour))
		if d > 7 {
			d = 7
		}
		return strconv.Itoa(d) + "d"
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, auth AuthType) ([]byte, error) {
	if auth == AuthSigned {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		if c.recvWindow > 0 {
			params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
		}
		params.Set("signature", sign(c.apiSecret, params.Encode()))
	}
	var (
		req *http.Request
		err error
	)
	urlStr := c.baseURL + path
	if method == http.MethodGet || method == http.MethodDelete {
		if encoded := params.Encode(); encoded != "" {
			urlStr += "?" + encoded
		}
		req, err = http.NewRequestWithContext(ctx, method, urlStr, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(params.Encode()))
	}
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet && method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if auth == AuthAPIKey || auth == AuthSigned {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func parseAPIError(status int, body []byte) error {
	var raw apiError
	if err := json.Unmarshal(body, &raw); err == nil && raw.Msg != "" {
		return classifyAPIError(APIError{Code: raw.Code, Msg: raw.Msg})
	}
	return fmt.Errorf("binance http error %d: %s", status, strings.TrimSpace(string(body)))
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
