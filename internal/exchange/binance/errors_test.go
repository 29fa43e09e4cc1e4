package binance

import (
	"errors"
	"testing"

	"github.com/emma2tony07-spec/ProbeBot/internal/core"
)

func TestClassifyAPIErrorNewOrderRejected(t *testing.T) {
	err := classifyAPIError(APIError{Code: apiCodeNewOrderRejected, Msg: "Account has insufficient balance for requested action."})
	if !errors.Is(err, core.ErrOrderRejected) {
		t.Fatalf("errors.Is(err, ErrOrderRejected) = false for %v", err)
	}
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("errors.Is(err, ErrInsufficientBalance) = false for %v", err)
	}
	if !IsAPIErrorCode(err, apiCodeNewOrderRejected) {
		t.Fatalf("IsAPIErrorCode(-2010) = false for %v", err)
	}
}

func TestClassifyAPIErrorFilterFailure(t *testing.T) {
	err := classifyAPIError(APIError{Code: apiCodeFilterFailure, Msg: "Filter failure: MIN_NOTIONAL"})
	if !errors.Is(err, core.ErrOrderRejected) {
		t.Fatalf("errors.Is(err, ErrOrderRejected) = false for %v", err)
	}
	if errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("errors.Is(err, ErrInsufficientBalance) = true, want false for filter failure")
	}
}

func TestClassifyAPIErrorUnknownCodePassesThrough(t *testing.T) {
	err := classifyAPIError(APIError{Code: -1000, Msg: "An unknown error occurred"})
	if errors.Is(err, core.ErrOrderRejected) {
		t.Fatalf("unknown code classified as order rejection: %v", err)
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -1000 {
		t.Fatalf("errors.As APIError failed for %v", err)
	}
}
