package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
)

// Classify names the transport failure behind err for logs: "timeout",
// "dns", "dial", "tls" or "" when err is not a recognised network error.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var dnsErr *net.DNSError
	var netErr net.Error
	var opErr *net.OpError
	var alert tls.AlertError
	var certErr *tls.CertificateVerificationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &alert), errors.As(err, &certErr):
		return "tls"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	}
	return ""
}
