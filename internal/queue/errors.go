package queue

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// SendError records a failed send after the retry policy gave up.
type SendError struct {
	// Provider is the name of the channel binding that failed.
	Provider string
	// Attempts is the number of send attempts made.
	Attempts int
	// Err is the last error returned by the channel.
	Err error
}

func (e *SendError) Error() string {
	return e.Provider + ": send failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}

// throttlingCodes are API error codes that indicate the request may succeed
// if sent again later.
var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"SlowDown":                               true,
	"ServiceUnavailable":                     true,
	"InternalError":                          true,
	"InternalFailure":                        true,
	"RequestTimeout":                         true,
	"RequestTimeoutException":                true,
	"KMSThrottlingException":                 true,
}

// IsTransient returns true if the error is a temporary failure that may
// succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMissingMessageID) || errors.Is(err, ErrMissingQueueURL) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if throttlingCodes[apiErr.ErrorCode()] {
			return true
		}
		if status, ok := httpStatus(err); ok {
			return classifyStatus(status)
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	if status, ok := httpStatus(err); ok {
		return classifyStatus(status)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Client-side SDK failures (bad parameters, missing credentials) never
	// reached the service and fail the same way every time.
	var paramsErr smithy.InvalidParamsError
	var paramsPtr *smithy.InvalidParamsError
	if errors.As(err, &paramsErr) || errors.As(err, &paramsPtr) {
		return false
	}
	var opErr *smithy.OperationError
	if errors.As(err, &opErr) {
		return false
	}

	// Unknown errors are treated as transient to avoid losing tasks.
	return true
}

func httpStatus(err error) (int, bool) {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}

// classifyStatus reports whether an HTTP status is worth retrying.
func classifyStatus(status int) bool {
	switch {
	case status == 429:
		// Rate limited - always transient.
		return true
	case status >= 500:
		return true
	case status == 408:
		return true
	default:
		return false
	}
}

// isRedisTransient reports whether a Redis error text describes a condition
// that clears by itself.
func isRedisTransient(err error) bool {
	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{"loading", "busy", "tryagain", "clusterdown", "connection", "timeout", "i/o"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
