package matineews

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
)

// ValidationError indicates a request is missing a required field. It is
// rejected before any state mutation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// NotConnectedError indicates a subscribe or unsubscribe referenced a
// connection that is not currently registered.
type NotConnectedError struct {
	ConnectionID string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("connection %v is not connected", e.ConnectionID)
}

// IsGone reports whether a delivery error means the recipient no longer
// exists (HTTP 410 from the management API), as opposed to a transient
// failure.
func IsGone(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == apigatewaymanagementapi.ErrCodeGoneException {
		return true
	}
	return strings.Contains(err.Error(), "GoneException") ||
		strings.Contains(err.Error(), "410")
}
