// Command tlsping dials a TLS endpoint through the connector, verifies
// the peer certificate against a trusted CA bundle, and prints the
// negotiated parameters.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/netfetch/netfetch/internal/netsec"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	app = kingpin.New("tlsping",
		"Dial a TLS endpoint, verify its certificate, and print the negotiated parameters.")

	bundle = app.Flag("bundle",
		"Path of the trusted CA bundle in PEM format.").Required().String()

	maxVersion = app.Flag("max-version",
		"Maximum TLS version to negotiate (e.g. TLSv1.2).").String()

	minVersion = app.Flag("min-version",
		"Minimum TLS version to negotiate (e.g. TLSv1.2).").String()

	prometheusEpnt = app.Flag("prometheus",
		"Optional endpoint where to serve prometheus metrics.").String()

	strict = app.Flag("strict",
		"Enable the strict certificate verification strategy.").Bool()

	timeout = app.Flag("timeout",
		"Timeout for establishing the transport connection.").Default("15s").Duration()

	verbose = app.Flag("verbose",
		"Enable verbose log output.").Short('v').Bool()

	endpoint = app.Arg("endpoint",
		"TCP endpoint to ping (host:port).").Required().String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	log.SetHandler(cli.Default)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *prometheusEpnt != "" {
		go servePrometheus(*prometheusEpnt)
	}
	if err := ping(context.Background(), *endpoint); err != nil {
		log.WithError(err).Error("tlsping failed")
		os.Exit(1)
	}
}

// servePrometheus exposes the /metrics endpoint.
func servePrometheus(endpoint string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(endpoint, mux); err != nil {
		log.WithError(err).Warn("prometheus endpoint failed")
	}
}

// ping connects once to the given endpoint and prints the outcome.
func ping(ctx context.Context, endpoint string) error {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return err
	}
	connector, err := netsec.NewConnector(*bundle, &netsec.Config{
		ConnectTimeout: *timeout,
		Logger:         log.Log,
		MaxVersion:     *maxVersion,
		MinVersion:     *minVersion,
		Strict:         *strict,
	})
	if err != nil {
		return err
	}
	defer connector.CloseIdleConnections()
	stream, err := connector.Connect(ctx, host, port)
	if err != nil {
		return err
	}
	defer stream.Close()
	state := stream.ConnectionState()
	fmt.Printf("version: %s\n", netsec.TLSVersionString(state.Version))
	fmt.Printf("cipher: %s\n", netsec.TLSCipherSuiteString(state.CipherSuite))
	if len(state.PeerCertificates) > 0 {
		leaf := state.PeerCertificates[0]
		fmt.Printf("subject: %s\n", leaf.Subject)
		fmt.Printf("issuer: %s\n", leaf.Issuer)
		fmt.Printf("expires: %s\n", leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}
