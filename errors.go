package whep

import (
	"errors"
	"fmt"
)

var (
	ErrPrecondition          = errors.New("precondition violation")
	ErrProtocol              = errors.New("protocol violation")
	ErrCapabilityUnsupported = errors.New("capability not supported")
)

var (
	ErrAlreadyViewing      = fmt.Errorf("%w: already viewing", ErrPrecondition)
	ErrResourceUnavailable = fmt.Errorf("%w: whep resource url not available yet", ErrPrecondition)
	ErrClosed              = fmt.Errorf("%w: session is closed", ErrPrecondition)
	ErrMissingLocation     = fmt.Errorf("%w: response missing location header", ErrProtocol)
	ErrLayerUnsupported    = fmt.Errorf("%w: whep resource does not support layer selection", ErrCapabilityUnsupported)
)

// RejectedError is a non-2xx answer from the server.
type RejectedError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s %s rejected with status %d. content: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
