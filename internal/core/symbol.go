package core

import "strings"

// Internal state keys on the base token ("BTC"); the quote-paired form
// ("BTCUSDT") is used only at the exchange boundary.

func PairSymbol(base, quote string) string {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return ""
	}
	return base + quote
}

// BaseToken strips the quote suffix from a pair symbol. It returns
// ok=false when the symbol is not denominated in the given quote or when
// the base would equal the quote currency itself.
func BaseToken(symbol, quote string) (string, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" || !strings.HasSuffix(symbol, quote) {
		return "", false
	}
	base := strings.TrimSuffix(symbol, quote)
	if base == "" || base == quote {
		return "", false
	}
	return base, true
}
