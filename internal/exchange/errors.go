package exchange

import (
	"context"
	"errors"
	"net"

	"github.com/adshao/go-binance/v2/common"
)

// ErrBreakerOpen is returned when the circuit breaker is rejecting calls.
// It is transient: the breaker probes again after its cool-down.
var ErrBreakerOpen = errors.New("exchange circuit breaker open")

// Binance API error codes that matter for retry classification. Anything not
// listed is treated as terminal: when in doubt, do not re-submit an order.
const (
	codeUnknown          = -1000 // internal error, safe to retry reads
	codeDisconnected     = -1001
	codeTooManyRequests  = -1003
	codeServiceShutdown  = -1016
	codeTimestampOutside = -1021
	codeInvalidQuantity  = -1013 // filter failure: lot size, notional...
	codeInvalidSymbol    = -1121
	codeNewOrderRejected = -2010 // includes insufficient balance
	codeCancelRejected   = -2011
)

// Retryable reports whether the caller may re-issue the request after
// backoff. Order submissions are never retried by the adapter itself;
// this classification is for the orchestration layer.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBreakerOpen) {
		return true
	}
	if IsTimeout(err) {
		// Unknown outcome: retrying a read is fine, retrying an order is
		// the caller's decision after reconciling state.
		return true
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeUnknown, codeDisconnected, codeTooManyRequests,
			codeServiceShutdown, codeTimestampOutside:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// Terminal reports the complement for actual API rejections: the request
// reached the exchange and was refused, so re-sending the same request
// cannot succeed.
func Terminal(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return !Retryable(err)
	}
	return false
}

// IsTimeout reports whether the call's outcome is unknown: the deadline
// expired or the connection dropped mid-flight. Callers must abort the
// symbol's cycle without mutating state.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// ErrorCode extracts the exchange error code, or 0 for non-API errors.
func ErrorCode(err error) int64 {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
