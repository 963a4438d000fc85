package upstream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an upstream failure. The rest of the system depends
// only on this taxonomy, never on transport detail.
type ErrorKind int

const (
	// KindNotFound is an upstream 404: the target resource does not exist.
	KindNotFound ErrorKind = iota + 1
	// KindValidation is any other 4xx: the request itself was rejected.
	KindValidation
	// KindServer is a 5xx: the upstream failed, the request may be valid.
	KindServer
	// KindNetwork is a transport-level failure before any status arrived.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	}
	return "unknown"
}

// Error is a typed upstream failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

// KindOf returns the kind of an upstream error, or zero for other errors.
func KindOf(err error) ErrorKind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return 0
}

// IsNotFound reports whether err is an upstream not-found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
