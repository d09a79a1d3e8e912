package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

func responseError(status int) error {
	return &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
		Err:      errors.New("boom"),
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unknown", errors.New("something odd"), true},
		{"throttling api error", &smithy.GenericAPIError{Code: "ThrottlingException", Fault: smithy.FaultClient}, true},
		{"server fault api error", &smithy.GenericAPIError{Code: "Whatever", Fault: smithy.FaultServer}, true},
		{"client fault api error", &smithy.GenericAPIError{Code: "InvalidParameterValue", Fault: smithy.FaultClient}, false},
		{"http 429", responseError(429), true},
		{"http 503", responseError(503), true},
		{"http 400", responseError(400), false},
		{"http 403", responseError(403), false},
		{"network error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", fmt.Errorf("send: %w", context.DeadlineExceeded), false},
		{"missing message id", ErrMissingMessageID, false},
		{"invalid params", smithy.InvalidParamsError{Context: "SendMessageInput"}, false},
		{"invalid params pointer", &smithy.InvalidParamsError{Context: "SendMessageInput"}, false},
		{"operation error without api cause", &smithy.OperationError{
			ServiceID: "SQS", OperationName: "SendMessage", Err: errors.New("failed to retrieve credentials"),
		}, false},
		{"operation error wrapping invalid params", &smithy.OperationError{
			ServiceID: "SQS", OperationName: "SendMessage", Err: smithy.InvalidParamsError{Context: "SendMessageInput"},
		}, false},
		{"operation error wrapping network error", &smithy.OperationError{
			ServiceID: "SQS", OperationName: "SendMessage", Err: &net.OpError{Op: "dial", Err: errors.New("refused")},
		}, true},
		{"operation error wrapping http 503", &smithy.OperationError{
			ServiceID: "SQS", OperationName: "SendMessage", Err: responseError(503),
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSendError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("queue gone")
	err := error(&SendError{Provider: "sqs", Attempts: 5, Err: cause})

	if !errors.Is(err, ErrSendFailed) {
		t.Error("SendError should match ErrSendFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("SendError should match its cause")
	}
	if err.Error() != "sqs: send failed: queue gone" {
		t.Errorf("Error() = %q", err.Error())
	}
}
