package messaging

import (
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Header names set on failed deliveries.
const (
	HeaderRetryCount  = "x-retry-count"
	HeaderLastError   = "x-last-error"
	HeaderFailureKind = "x-failure-kind"
)

const maxErrorHeaderLen = 1024

// RetryCount reads x-retry-count; absent or malformed means 0.
func RetryCount(h amqp.Table) int {
	v, ok := h[HeaderRetryCount]
	if !ok {
		return 0
	}
	var n int64
	switch x := v.(type) {
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case int:
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case float32:
		n = int64(x)
	case float64:
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

// failureHeaders copies h and records the attempt count and the failure.
func failureHeaders(h amqp.Table, attempts int, kind, errMsg string) amqp.Table {
	out := make(amqp.Table, len(h)+3)
	for k, v := range h {
		out[k] = v
	}
	if len(errMsg) > maxErrorHeaderLen {
		errMsg = errMsg[:maxErrorHeaderLen]
	}
	out[HeaderRetryCount] = int32(attempts)
	out[HeaderLastError] = errMsg
	out[HeaderFailureKind] = kind
	return out
}
