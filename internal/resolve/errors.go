package resolve

import "fmt"

// UnknownEndpointError reports a lookup of an endpoint id the registry does
// not know. Always a caller or configuration bug, never retried.
type UnknownEndpointError struct {
	ID string
}

func (e *UnknownEndpointError) Error() string {
	return fmt.Sprintf("unknown endpoint %q", e.ID)
}

// UnknownSurfaceError reports that an endpoint has no template for the
// requested surface.
type UnknownSurfaceError struct {
	ID      string
	Surface string
}

func (e *UnknownSurfaceError) Error() string {
	return fmt.Sprintf("endpoint %q has no template for surface %q", e.ID, e.Surface)
}

// MissingParameterError names the first required placeholder the caller did
// not supply. No partial substitution is attempted.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// InvalidParameterError reports a supplied value that cannot be substituted,
// e.g. one containing a raw "/" that would escape its path segment.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid value for parameter %q: %s", e.Name, e.Reason)
}
