// Package hostmatch decides whether the identity claimed by a server
// certificate is valid for the hostname we dialed.
//
// The rules implemented here are the strict subset of RFC 6125 that
// browsers converged on:
//
// 1. when the certificate carries a Subject Alternative Name extension,
// only SAN entries are consulted and the legacy Common Name is ignored;
//
// 2. IP targets are compared byte-for-byte against IP-type SAN entries
// and never participate in wildcard matching;
//
// 3. DNS wildcards are confined to the leftmost label, require at least
// two labels after the wildcard label, and never apply to punycode
// (`xn--`) labels.
//
// All functions are pure and safe for concurrent use.
package hostmatch

import (
	"bytes"
	"crypto/x509"
	"net"
	"strings"
)

// oidSubjectAltName is the object identifier of the SAN extension.
var oidSubjectAltName = []int{2, 5, 29, 17}

// hasSANExtension returns whether cert carries the SAN extension. We
// check for the extension itself rather than for parsed entries so that
// a certificate whose SANs are all of a type we don't compare (e.g. email
// addresses) still suppresses the Common Name fallback.
func hasSANExtension(cert *x509.Certificate) bool {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			return true
		}
	}
	return false
}

// Matches reports whether cert is valid for host. The host may be a DNS
// name or an IP literal, optionally enclosed in square brackets. An empty
// host never matches.
func Matches(cert *x509.Certificate, host string) bool {
	host = trimBrackets(host)
	if host == "" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		if hasSANExtension(cert) {
			return matchAnyIP(cert.IPAddresses, ip)
		}
		// Unlike SANs, an IP address in the subject name has no distinct
		// encoding. Compare it as a string with wildcards disabled so that
		// a bogus pattern like *.0.0.1 cannot match.
		return matchPattern(cert.Subject.CommonName, host, true)
	}
	if hasSANExtension(cert) {
		return MatchNames(cert.DNSNames, host)
	}
	return matchPattern(cert.Subject.CommonName, host, false)
}

// MatchNames reports whether any of the given DNS patterns is valid for
// the given DNS hostname. The caller must have already established that
// host is not an IP literal.
func MatchNames(patterns []string, host string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, host, false) {
			return true
		}
	}
	return false
}

// matchPattern reports whether a single DNS pattern is valid for host.
// When isIP is true the wildcard rules are disabled and only the exact
// comparison remains.
func matchPattern(pattern, host string, isIP bool) bool {
	if pattern == "" || host == "" {
		return false
	}
	// Strip trailing dots to normalize fully-qualified forms.
	pattern = strings.TrimSuffix(pattern, ".")
	host = strings.TrimSuffix(host, ".")
	if matched, decided := matchWildcard(pattern, host, isIP); decided {
		return matched
	}
	return pattern == host
}

// matchWildcard evaluates the wildcard rules for pattern against host.
// The decided return value is false when the wildcard rules do not apply
// at all, in which case the caller falls back to exact comparison.
func matchWildcard(pattern, host string, isIP bool) (matched, decided bool) {
	// IP addresses and internationalized domains never wildcard.
	if isIP || strings.HasPrefix(pattern, "xn--") {
		return false, false
	}
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return false, false
	}
	firstDot := strings.IndexByte(pattern, '.')
	if firstDot < 0 {
		return false, false
	}
	// Require at least two dots overall so that *.com never matches. This
	// doesn't disallow *.co.uk; NSS behaves the same way, and carrying the
	// public suffix list here isn't worth its churn.
	if strings.IndexByte(pattern[firstDot+1:], '.') < 0 {
		return false, false
	}
	// The wildcard must live in the first label.
	if star > firstDot {
		return false, false
	}
	hostDot := strings.IndexByte(host, '.')
	if hostDot < 0 {
		return false, false
	}
	// The non-wildcard suffixes must be identical.
	if pattern[firstDot:] != host[hostDot:] {
		return false, true
	}
	prefix := pattern[:star]
	suffix := pattern[star+1 : firstDot]
	label := host[:hostDot]
	if !strings.HasPrefix(label, prefix) {
		return false, true
	}
	if !strings.HasSuffix(label[len(prefix):], suffix) {
		return false, true
	}
	return true, true
}

// matchAnyIP reports whether any SAN IP address equals want.
func matchAnyIP(sans []net.IP, want net.IP) bool {
	for _, san := range sans {
		if matchIP(san, want) {
			return true
		}
	}
	return false
}

// matchIP compares two IP addresses byte by byte: four bytes for IPv4 and
// sixteen for IPv6. An IPv4 address and its IPv4-in-IPv6 mapping denote
// the same four bytes and compare equal; a bare IPv4 address never equals
// a native IPv6 one.
func matchIP(san, want net.IP) bool {
	san4, want4 := san.To4(), want.To4()
	if san4 != nil || want4 != nil {
		return san4 != nil && want4 != nil && bytes.Equal(san4, want4)
	}
	return bytes.Equal(san.To16(), want.To16())
}

// trimBrackets removes the square brackets around an IPv6 literal.
func trimBrackets(host string) string {
	if len(host) >= 3 && host[0] == '[' && host[len(host)-1] == ']' {
		return host[1 : len(host)-1]
	}
	return host
}
