package mailer

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// IsConnectionError reports whether err is a connection-class failure
// (refused, reset, timed out). These invalidate the cached SMTP
// configuration: the peer we verified earlier is no longer reachable,
// so the next attempt must reprobe instead of hammering a dead host.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// SMTP libraries frequently wrap transport failures into plain
	// errors, so fall back to message matching for the common classes.
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"timeout",
		"no such host",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
