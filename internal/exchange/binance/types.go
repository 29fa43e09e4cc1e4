package binance

import "fmt"

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// APIError is a structured Binance REST error.
type APIError struct {
	Code int
	Msg  string
}

func (e APIError) Error() string {
	return fmt.Sprintf("binance api error code=%d msg=%q", e.Code, e.Msg)
}

type ticker24hResponse struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

type rollingTickerResponse struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	ExecutedQty   string `json:"executedQty"`
}

type myTradeResponse struct {
	Symbol  string `json:"symbol"`
	Price   string `json:"price"`
	Qty     string `json:"qty"`
	IsBuyer bool   `json:"isBuyer"`
	Time    int64  `json:"time"`
}

type miniTickerEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

type combinedStreamMessage struct {
	Stream string          `json:"stream"`
	Data   miniTickerEvent `json:"data"`
}
