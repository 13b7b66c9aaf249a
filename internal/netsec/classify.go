package netsec

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/netfetch/netfetch/internal/certverify"
)

// Stable failure strings. Callers match on these rather than on the
// text of the underlying Go errors.
const (
	FailureConnectionAlreadyClosed = "connection_already_closed"
	FailureConnectionRefused       = "connection_refused"
	FailureConnectionReset         = "connection_reset"
	FailureEOFError                = "eof_error"
	FailureGenericTimeoutError     = "generic_timeout_error"
	FailureHostUnreachable         = "host_unreachable"
	FailureInterrupted             = "interrupted"
	FailureInvalidConfig           = "invalid_config"
	FailureNetworkUnreachable      = "network_unreachable"
	FailurePoolExhausted           = "connection_pool_exhausted"
	FailureSSLFailedHandshake      = "ssl_failed_handshake"
	FailureSSLInvalidCertificate   = "ssl_invalid_certificate"
	FailureSSLInvalidHostname      = "ssl_invalid_hostname"
	FailureSSLUnknownAuthority     = "ssl_unknown_authority"
)

// Major and minor operations used by ErrWrapper.Operation.
const (
	ConnectOperation      = "connect"
	PoolCheckoutOperation = "pool_checkout"
	TLSHandshakeOperation = "tls_handshake"
)

// ErrConfig is the sentinel error wrapped by all configuration errors:
// an unreadable or malformed trust bundle, an unknown TLS version name,
// or inconsistent version bounds. Configuration errors surface at
// connector construction time and are never recoverable per request.
var ErrConfig = errors.New("netsec: invalid configuration")

// ErrPoolExhausted indicates that the connection pool reached its
// resource limits and no pooled connection was available. The caller
// decides whether to back off and retry.
var ErrPoolExhausted = errors.New("netsec: connection pool exhausted")

// classifyGenericError maps an error occurred during an operation to a
// failure string. This is the most generic classifier: syscall errors,
// context errors, and all the errors that depend on strings. The more
// specific classifiers call this one when they find no mapping.
//
// If the input error is an *ErrWrapper we don't perform the
// classification again and we return its Failure.
func classifyGenericError(err error) string {
	var errwrapper *ErrWrapper
	if errors.As(err, &errwrapper) {
		return errwrapper.Error() // we've already wrapped it
	}

	if failure := classifySyscallError(err); failure != "" {
		return failure
	}

	if errors.Is(err, context.Canceled) {
		return FailureInterrupted
	}
	if errors.Is(err, ErrPoolExhausted) {
		return FailurePoolExhausted
	}
	if errors.Is(err, ErrConfig) {
		return FailureInvalidConfig
	}

	if failure := classifyWithStringSuffix(err); failure != "" {
		return failure
	}

	return fmt.Sprintf("unknown_failure: %s", err.Error())
}

// classifySyscallError maps system call errors to failure strings. It
// returns an empty string when there is no mapping.
func classifySyscallError(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return FailureConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return FailureConnectionReset
	case errors.Is(err, syscall.EHOSTUNREACH):
		return FailureHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH):
		return FailureNetworkUnreachable
	case errors.Is(err, syscall.ETIMEDOUT):
		return FailureGenericTimeoutError
	case errors.Is(err, syscall.EPIPE):
		return FailureConnectionReset
	}
	return ""
}

// classifyWithStringSuffix performs classification by looking at error
// suffixes. It returns an empty string if it cannot classify the error.
func classifyWithStringSuffix(err error) string {
	s := err.Error()
	if strings.HasSuffix(s, "operation was canceled") {
		return FailureInterrupted
	}
	if strings.HasSuffix(s, "EOF") {
		return FailureEOFError
	}
	if strings.HasSuffix(s, "context deadline exceeded") {
		return FailureGenericTimeoutError
	}
	if strings.HasSuffix(s, "i/o timeout") {
		return FailureGenericTimeoutError
	}
	if strings.HasSuffix(s, "use of closed network connection") {
		return FailureConnectionAlreadyClosed
	}
	return "" // not found
}

// classifyTLSHandshakeError maps an error occurred during the TLS
// handshake to a failure string. Verification failures produced by the
// certverify strategies carry a Reason which maps directly; crypto/x509
// errors surfacing through other paths are mapped by type. If this
// classifier fails, it falls back to classifyGenericError.
func classifyTLSHandshakeError(err error) string {
	var errwrapper *ErrWrapper
	if errors.As(err, &errwrapper) {
		return errwrapper.Error() // we've already wrapped it
	}

	var verifyErr *certverify.ErrVerify
	if errors.As(err, &verifyErr) {
		switch verifyErr.Reason {
		case certverify.ReasonHostnameMismatch:
			return FailureSSLInvalidHostname
		case certverify.ReasonUnknownAuthority:
			return FailureSSLUnknownAuthority
		default:
			return FailureSSLInvalidCertificate
		}
	}

	var x509HostnameError x509.HostnameError
	if errors.As(err, &x509HostnameError) {
		return FailureSSLInvalidHostname
	}
	var x509UnknownAuthorityError x509.UnknownAuthorityError
	if errors.As(err, &x509UnknownAuthorityError) {
		return FailureSSLUnknownAuthority
	}
	var x509CertificateInvalidError x509.CertificateInvalidError
	if errors.As(err, &x509CertificateInvalidError) {
		return FailureSSLInvalidCertificate
	}

	if strings.HasSuffix(err.Error(), "handshake failure") {
		return FailureSSLFailedHandshake
	}
	return classifyGenericError(err)
}
