package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrHeightTooHigh is returned when the height is higher than the last
	// block that the provider has.
	ErrHeightTooHigh = errors.New("height requested is too high")
	// ErrLightBlockNotFound is returned when a provider can't find the
	// requested header (i.e. it has been pruned).
	ErrLightBlockNotFound = errors.New("light block not found")
	// ErrNoResponse is returned if the provider doesn't respond to the
	// request in a given time.
	ErrNoResponse = errors.New("client failed to respond")
)

// ErrBadLightBlock is returned when a provider returns an invalid
// light block.
type ErrBadLightBlock struct {
	Reason error
}

func (e ErrBadLightBlock) Error() string {
	return fmt.Sprintf("client provided bad signed header: %s", e.Reason.Error())
}

func (e ErrBadLightBlock) Unwrap() error {
	return e.Reason
}

// ErrTransport is returned when the request could not be carried out: the
// connection failed or the remote answered with an unexpected status.
type ErrTransport struct {
	Reason error
}

func (e ErrTransport) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Reason)
}

func (e ErrTransport) Unwrap() error {
	return e.Reason
}
