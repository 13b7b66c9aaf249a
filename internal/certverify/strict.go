package certverify

import (
	"crypto/x509"
	"time"

	"github.com/netfetch/netfetch/internal/model"
	"github.com/netfetch/netfetch/internal/runtimex"
)

// strictVerifier revalidates the presented chain independently of the
// handshake library's own verdict: it rebuilds the chain of trust from
// the presented DER bytes against the trusted roots and enforces the
// leaf validity window and the server-auth key usage explicitly, before
// running the very same hostname check as the chain verifier.
type strictVerifier struct {
	// roots contains the trusted root CAs.
	roots *x509.CertPool

	// timeNow is like time.Now except that it's mockable for testing.
	timeNow func() time.Time
}

var _ model.CertVerifier = &strictVerifier{}

// NewStrictVerifier creates the strict verification strategy using the
// given trusted roots. This function panics if roots is nil.
func NewStrictVerifier(roots *x509.CertPool) model.CertVerifier {
	runtimex.PanicIfTrue(roots == nil, "NewStrictVerifier passed a nil cert pool")
	return &strictVerifier{roots: roots, timeNow: time.Now}
}

// VerifyPeer implements model.CertVerifier.
func (v *strictVerifier) VerifyPeer(host string, rawCerts [][]byte) error {
	leaf, intermediates, err := parseChain(host, rawCerts)
	if err != nil {
		return err
	}
	now := v.timeNow()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return &ErrVerify{Host: host, Reason: ReasonExpired}
	}
	if !leafAllowsServerAuth(leaf) {
		return &ErrVerify{Host: host, Reason: ReasonKeyUsage}
	}
	opts := x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	preverifyOK := true
	var cause error
	if _, err := leaf.Verify(opts); err != nil {
		preverifyOK = false
		cause = err
	}
	// Feed our own chain verdict through the same gate as the other
	// strategy so the hostname decision cannot diverge between modes.
	if !Gate(preverifyOK, 0, leaf, host) {
		if !preverifyOK {
			return &ErrVerify{Host: host, Reason: reasonForChainError(cause), cause: cause}
		}
		return &ErrVerify{Host: host, Reason: ReasonHostnameMismatch}
	}
	return nil
}

// leafAllowsServerAuth returns whether the leaf's extended key usage
// permits TLS server authentication. An absent extension imposes no
// constraint.
func leafAllowsServerAuth(leaf *x509.Certificate) bool {
	if len(leaf.ExtKeyUsage) <= 0 && len(leaf.UnknownExtKeyUsage) <= 0 {
		return true
	}
	for _, usage := range leaf.ExtKeyUsage {
		if usage == x509.ExtKeyUsageServerAuth || usage == x509.ExtKeyUsageAny {
			return true
		}
	}
	return false
}
