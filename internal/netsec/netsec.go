// Package netsec establishes verified outbound TLS connections.
//
// The package provides:
//
// 1. an immutable Policy describing the protocol versions and the
// ordered cipher suites we are willing to negotiate;
//
// 2. a TrustStore loading the root CAs from a PEM bundle once at
// startup;
//
// 3. a Connector producing ready-to-use encrypted streams, reusing
// transport connections across requests to the same destination and
// delegating every trust decision to an injected certverify strategy.
//
// The decomposition in dialers, handshakers, and decorators adding
// logging and error wrapping follows the usual pattern: construct the
// innermost type doing the real work and wrap it with decorators each
// guaranteeing a single concern.
package netsec
