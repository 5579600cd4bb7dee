package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// ErrDestinationUnreachable is reported when an ICMP destination unreachable
// message comes back instead of an echo reply.
var ErrDestinationUnreachable = errors.New("destination unreachable")

// Classify maps a network error onto the failure taxonomy.
//
//	context.DeadlineExceeded, net.Error timeouts        TIMEOUT
//	ECONNREFUSED ECONNRESET EHOSTUNREACH ENETUNREACH
//	EHOSTDOWN ENETDOWN, ErrDestinationUnreachable        UNREACHABLE
//	EACCES EPERM os.ErrPermission                        PERMISSION_DENIED
//	anything else                                        UNKNOWN
func Classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ReasonTimeout
	}

	switch {
	case errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, os.ErrPermission):
		return ReasonPermissionDenied
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTDOWN),
		errors.Is(err, syscall.ENETDOWN),
		errors.Is(err, ErrDestinationUnreachable):
		return ReasonUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	return ReasonUnknown
}
