package binance

import (
	"errors"
	"strings"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

const (
	apiCodeNewOrderRejected = -2010
	apiCodeCancelRejected   = -2011
	apiCodeFilterFailure    = -1013
)

// classifyAPIError joins the raw API error with the sentinel kinds the
// executor classifies on, so errors.Is works across the boundary.
func classifyAPIError(apiErr APIError) error {
	kinds := apiErrorKinds(apiErr)
	if len(kinds) == 0 {
		return apiErr
	}
	chain := make([]error, 0, 1+len(kinds))
	chain = append(chain, apiErr)
	chain = append(chain, kinds...)
	return errors.Join(chain...)
}

func apiErrorKinds(apiErr APIError) []error {
	msg := strings.ToLower(strings.TrimSpace(apiErr.Msg))
	var kinds []error
	switch apiErr.Code {
	case apiCodeNewOrderRejected:
		if strings.Contains(msg, "insufficient balance") || strings.Contains(msg, "balance is insufficient") {
			kinds = append(kinds, core.ErrInsufficientBalance)
		}
		kinds = append(kinds, core.ErrOrderRejected)
	case apiCodeCancelRejected, apiCodeFilterFailure:
		kinds = append(kinds, core.ErrOrderRejected)
	}
	return kinds
}

// IsAPIErrorCode reports whether err carries a Binance API error with the
// given code anywhere in its chain.
func IsAPIErrorCode(err error, code int) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
