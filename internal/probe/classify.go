package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/tdh8316/osintagg/internal/httpx"
)

const (
	detailConnection = "connection failed - site may be blocking requests"
	detailTimeout    = "request timed out"
	detailRedirect   = "too many redirects"
)

// Classify maps a transport error returned by an HTTP client to an error kind
// and a human readable detail.
func Classify(err error) (ErrorKind, string) {
	switch {
	case errors.Is(err, httpx.ErrTooManyRedirects):
		return KindRedirect, detailRedirect
	case isTimeout(err):
		return KindTimeout, detailTimeout
	case isConnection(err):
		return KindConnection, detailConnection
	default:
		return KindTransport, "request failed: " + err.Error()
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnection(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	for _, target := range []error{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		io.EOF,
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
