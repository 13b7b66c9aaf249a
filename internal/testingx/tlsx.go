// Package testingx contains test-only TLS infrastructure: a throwaway
// certification authority minting leaf certificates with chosen identity
// claims, and a minimal in-process TLS echo server.
package testingx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/netfetch/netfetch/internal/runtimex"
)

// CA is a throwaway certification authority.
type CA struct {
	// cert is the self-signed CA certificate.
	cert *x509.Certificate

	// key is the CA private key.
	key *ecdsa.PrivateKey

	// pemBytes is the PEM serialization of the CA certificate.
	pemBytes []byte
}

// MustNewCA creates a new throwaway CA valid for 24 hours.
func MustNewCA() *CA {
	key := runtimex.Try1(ecdsa.GenerateKey(elliptic.P256(), rand.Reader))
	template := &x509.Certificate{
		SerialNumber:          newSerial(),
		Subject:               pkix.Name{CommonName: "testingx root CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der := runtimex.Try1(x509.CreateCertificate(
		rand.Reader, template, template, &key.PublicKey, key))
	cert := runtimex.Try1(x509.ParseCertificate(der))
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return &CA{cert: cert, key: key, pemBytes: pemBytes}
}

// CertPool returns a new pool containing only this CA.
func (ca *CA) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.cert)
	return pool
}

// BundlePEM returns the CA certificate in PEM format.
func (ca *CA) BundlePEM() []byte {
	return ca.pemBytes
}

// MustWriteBundle writes the CA bundle into dir and returns its path.
func (ca *CA) MustWriteBundle(dir string) string {
	path := filepath.Join(dir, "ca-bundle.pem")
	runtimex.PanicOnError(os.WriteFile(path, ca.pemBytes, 0600), "os.WriteFile failed")
	return path
}

// LeafConfig configures MustNewLeaf.
type LeafConfig struct {
	// CommonName is the OPTIONAL subject common name.
	CommonName string

	// DNSNames contains the OPTIONAL DNS SAN entries.
	DNSNames []string

	// IPAddresses contains the OPTIONAL IP SAN entries.
	IPAddresses []net.IP

	// Expired makes the leaf's validity window lie in the past.
	Expired bool

	// ClientOnly restricts the extended key usage to client auth.
	ClientOnly bool
}

// MustNewLeaf mints a leaf certificate signed by this CA.
func (ca *CA) MustNewLeaf(config *LeafConfig) tls.Certificate {
	key := runtimex.Try1(ecdsa.GenerateKey(elliptic.P256(), rand.Reader))
	notBefore := time.Now().Add(-time.Hour)
	notAfter := time.Now().Add(time.Hour)
	if config.Expired {
		notBefore = time.Now().Add(-48 * time.Hour)
		notAfter = time.Now().Add(-24 * time.Hour)
	}
	extKeyUsage := []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	if config.ClientOnly {
		extKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	}
	template := &x509.Certificate{
		SerialNumber: newSerial(),
		Subject:      pkix.Name{CommonName: config.CommonName},
		DNSNames:     config.DNSNames,
		IPAddresses:  config.IPAddresses,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  extKeyUsage,
	}
	der := runtimex.Try1(x509.CreateCertificate(
		rand.Reader, template, ca.cert, &key.PublicKey, ca.key))
	leaf := runtimex.Try1(x509.ParseCertificate(der))
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}

// newSerial returns a random certificate serial number.
func newSerial() *big.Int {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return runtimex.Try1(rand.Int(rand.Reader, limit))
}

// TLSServer is an in-process TLS echo server for testing.
type TLSServer struct {
	// closeOnce provides "once" semantics when closing.
	closeOnce sync.Once

	// endpoint is the endpoint where we're listening.
	endpoint string

	// listener is the listening socket controller.
	listener net.Listener

	// wg waits until the listening loop has finished running.
	wg sync.WaitGroup
}

// MustNewTLSServer creates and starts a TLSServer on 127.0.0.1 that
// serves the given certificate and echoes whatever the peer sends.
func MustNewTLSServer(cert tls.Certificate) *TLSServer {
	config := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS10,
	}
	tcpListener := runtimex.Try1(net.Listen("tcp", "127.0.0.1:0"))
	srv := &TLSServer{
		endpoint: tcpListener.Addr().String(),
		listener: tls.NewListener(tcpListener, config),
	}
	srv.wg.Add(1)
	go srv.mainloop()
	return srv
}

// Endpoint returns the server's host:port endpoint.
func (srv *TLSServer) Endpoint() string {
	return srv.endpoint
}

// mainloop accepts and serves connections until the listener is closed.
func (srv *TLSServer) mainloop() {
	defer srv.wg.Done()
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			return
		}
		go srv.serve(conn)
	}
}

// serve echoes the conn onto itself until EOF.
func (srv *TLSServer) serve(conn net.Conn) {
	defer conn.Close()
	io.Copy(conn, conn)
}

// Close stops the server and waits for the accept loop to return.
func (srv *TLSServer) Close() error {
	var err error
	srv.closeOnce.Do(func() {
		err = srv.listener.Close()
		srv.wg.Wait()
	})
	return err
}
