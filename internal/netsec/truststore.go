package netsec

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// TrustStore is an immutable set of root certificate authorities loaded
// once from a PEM bundle. It is shared read-only across all connections
// and must never be mutated after construction.
type TrustStore struct {
	// path is the bundle path, or "<inline>" for in-memory bundles.
	path string

	// pool contains the parsed roots.
	pool *x509.CertPool

	// count is the number of loaded certificates.
	count int
}

// NewTrustStore loads a trust store from the PEM bundle at path. Any
// error opening or parsing the bundle wraps ErrConfig: a connector must
// fail fast at startup rather than trusting nothing, and there is no
// fallback to an empty or system store.
func NewTrustStore(path string) (*TrustStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading trust bundle: %s", ErrConfig, err.Error())
	}
	store, err := NewTrustStoreFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	store.path = path
	return store, nil
}

// NewTrustStoreFromPEM builds a trust store from an in-memory PEM
// bundle. Every CERTIFICATE block must parse and there must be at least
// one, otherwise the returned error wraps ErrConfig.
func NewTrustStoreFromPEM(data []byte) (*TrustStore, error) {
	pool := x509.NewCertPool()
	count := 0
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing trust bundle certificate %d: %s",
				ErrConfig, count, err.Error())
		}
		pool.AddCert(cert)
		count++
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: trust bundle contains no certificates", ErrConfig)
	}
	return &TrustStore{path: "<inline>", pool: pool, count: count}, nil
}

// Pool returns the root pool. The returned pool is shared: callers must
// treat it as read-only.
func (ts *TrustStore) Pool() *x509.CertPool {
	return ts.pool
}

// Count returns the number of loaded root certificates.
func (ts *TrustStore) Count() int {
	return ts.count
}

// Path returns the path the store was loaded from.
func (ts *TrustStore) Path() string {
	return ts.path
}
