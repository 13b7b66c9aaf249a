// Package certverify gates TLS handshakes on certificate trust and
// hostname correctness.
//
// Two strategies implement the model.CertVerifier capability:
//
// 1. the chain verifier (NewChainVerifier) delegates chain validation to
// crypto/x509 and then binds the leaf to the requested hostname;
//
// 2. the strict verifier (NewStrictVerifier) rebuilds the chain from the
// presented DER bytes and additionally enforces the leaf validity window
// and the server-auth key usage before the same hostname check.
//
// Both strategies compose their verdicts through Gate, so the hostname
// decision is byte-for-byte the same in either mode. There is, on
// purpose, no strategy that accepts unconditionally.
package certverify

import (
	"crypto/x509"
	"fmt"

	"github.com/netfetch/netfetch/internal/hostmatch"
)

// Reason is the coarse reason attached to a verification failure. It is
// safe to log and to use as a metric label: it never contains peer data.
type Reason string

const (
	// ReasonNoCertificate means the peer presented no certificate at all.
	ReasonNoCertificate = Reason("no_certificate")

	// ReasonUnparseable means a presented certificate was not valid DER.
	ReasonUnparseable = Reason("unparseable_certificate")

	// ReasonUnknownAuthority means no chain leads to a trusted root.
	ReasonUnknownAuthority = Reason("unknown_authority")

	// ReasonExpired means the leaf is outside its validity window.
	ReasonExpired = Reason("certificate_expired")

	// ReasonKeyUsage means the leaf is not authorized for server auth.
	ReasonKeyUsage = Reason("key_usage")

	// ReasonBadChain means chain validation failed for another reason.
	ReasonBadChain = Reason("bad_chain")

	// ReasonHostnameMismatch means the chain is fine but the leaf does
	// not cover the hostname we dialed.
	ReasonHostnameMismatch = Reason("hostname_mismatch")
)

// ErrVerify is the error returned when we reject a peer. The message
// carries the hostname and the reason but never certificate contents, so
// it is safe to emit at default verbosity.
type ErrVerify struct {
	// Host is the hostname we were connecting to.
	Host string

	// Reason is the coarse failure reason.
	Reason Reason

	// cause is the underlying error, if any.
	cause error
}

// Error implements error.
func (e *ErrVerify) Error() string {
	return fmt.Sprintf("certificate verification failed for %s: %s", e.Host, e.Reason)
}

// Unwrap returns the underlying error, if any.
func (e *ErrVerify) Unwrap() error {
	return e.cause
}

// Gate composes the underlying library's preliminary verdict with the
// leaf hostname check. This is the callback boundary: preverifyOK is the
// library's own chain verdict for the certificate at the given depth,
// where depth zero is the leaf.
//
// Away from the leaf we defer to the library: chain structure and
// signatures are its responsibility and revalidating them here would be
// redundant. At the leaf we additionally require the hostname to match,
// and we never turn a failed preliminary verdict into an acceptance. A
// missing leaf certificate is rejected outright.
func Gate(preverifyOK bool, depth int, cert *x509.Certificate, host string) bool {
	if !preverifyOK || depth != 0 {
		return preverifyOK
	}
	if cert == nil {
		return false
	}
	return hostmatch.Matches(cert, host)
}

// parseChain parses the raw DER certificates presented by the peer. The
// first certificate is the leaf; the rest are candidate intermediates.
func parseChain(host string, rawCerts [][]byte) (*x509.Certificate, *x509.CertPool, error) {
	if len(rawCerts) < 1 {
		return nil, nil, &ErrVerify{Host: host, Reason: ReasonNoCertificate}
	}
	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, nil, &ErrVerify{Host: host, Reason: ReasonUnparseable, cause: err}
	}
	intermediates := x509.NewCertPool()
	for _, raw := range rawCerts[1:] {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, nil, &ErrVerify{Host: host, Reason: ReasonUnparseable, cause: err}
		}
		intermediates.AddCert(cert)
	}
	return leaf, intermediates, nil
}

// reasonForChainError maps a crypto/x509 chain validation error to the
// corresponding Reason.
func reasonForChainError(err error) Reason {
	switch v := err.(type) {
	case x509.UnknownAuthorityError:
		return ReasonUnknownAuthority
	case x509.CertificateInvalidError:
		switch v.Reason {
		case x509.Expired:
			return ReasonExpired
		case x509.IncompatibleUsage:
			return ReasonKeyUsage
		}
	}
	return ReasonBadChain
}
