package opencode

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// UnreachableError reports a transport-level failure talking to the assistant
// server. The message carries remediation guidance because it is shown to the
// end user nearly verbatim.
type UnreachableError struct {
	BaseURL string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("cannot connect to OpenCode server at %s: %v", e.BaseURL, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Remediation returns the user-facing guidance for this failure.
func (e *UnreachableError) Remediation() string {
	return fmt.Sprintf("Cannot connect to OpenCode server at %s. Please ensure:\n"+
		"1. The OpenCode server is running (opencode serve)\n"+
		"2. OPENCODE_SERVER_URL is configured correctly", e.BaseURL)
}

// IsUnreachable reports whether err represents a connection failure to the
// assistant server.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// classify wraps transport errors in UnreachableError and leaves HTTP-level
// failures (the server answered, just not happily) untouched.
func (c *Client) classify(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return &UnreachableError{BaseURL: c.baseURL, Err: err}
	}
	return err
}

// StartError reports a failed spawn-and-await-ready attempt for the local
// server process.
type StartError struct {
	Message string
	Err     error
}

func (e *StartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StartError) Unwrap() error {
	return e.Err
}
