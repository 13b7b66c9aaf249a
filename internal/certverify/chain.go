package certverify

import (
	"crypto/x509"

	"github.com/netfetch/netfetch/internal/model"
	"github.com/netfetch/netfetch/internal/runtimex"
)

// chainVerifier is the library-backed verification strategy: crypto/x509
// builds and validates the chain against the trusted roots, then Gate
// binds the leaf to the hostname.
type chainVerifier struct {
	// roots contains the trusted root CAs.
	roots *x509.CertPool
}

var _ model.CertVerifier = &chainVerifier{}

// NewChainVerifier creates the default, library-backed verifier using
// the given trusted roots. This function panics if roots is nil.
func NewChainVerifier(roots *x509.CertPool) model.CertVerifier {
	runtimex.PanicIfTrue(roots == nil, "NewChainVerifier passed a nil cert pool")
	return &chainVerifier{roots: roots}
}

// VerifyPeer implements model.CertVerifier.
func (v *chainVerifier) VerifyPeer(host string, rawCerts [][]byte) error {
	leaf, intermediates, err := parseChain(host, rawCerts)
	if err != nil {
		return err
	}
	// Note: DNSName is left empty on purpose. Hostname binding is this
	// package's job and must go through hostmatch in every strategy.
	opts := x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	preverifyOK := true
	var cause error
	if _, err := leaf.Verify(opts); err != nil {
		preverifyOK = false
		cause = err
	}
	if !Gate(preverifyOK, 0, leaf, host) {
		if !preverifyOK {
			return &ErrVerify{Host: host, Reason: reasonForChainError(cause), cause: cause}
		}
		return &ErrVerify{Host: host, Reason: ReasonHostnameMismatch}
	}
	return nil
}
