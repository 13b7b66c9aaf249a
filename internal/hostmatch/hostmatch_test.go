package hostmatch

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"net"
	"testing"
)

// newCert creates a bare certificate carrying the given identity claims.
// When withSAN is true the certificate also carries the SAN extension,
// like any certificate with dnsNames or ipAddresses would in the wild.
func newCert(commonName string, dnsNames []string, ipAddresses []net.IP, withSAN bool) *x509.Certificate {
	cert := &x509.Certificate{
		Subject:     pkix.Name{CommonName: commonName},
		DNSNames:    dnsNames,
		IPAddresses: ipAddresses,
	}
	if withSAN {
		cert.Extensions = []pkix.Extension{{
			Id: asn1.ObjectIdentifier{2, 5, 29, 17},
		}}
	}
	return cert
}

func TestMatchesDNSNames(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		host    string
		want    bool
	}{{
		name:    "exact match",
		pattern: "example.com",
		host:    "example.com",
		want:    true,
	}, {
		name:    "exact mismatch",
		pattern: "example.com",
		host:    "example.org",
		want:    false,
	}, {
		name:    "exact match is case sensitive",
		pattern: "Example.com",
		host:    "example.com",
		want:    false,
	}, {
		name:    "trailing dot on pattern",
		pattern: "example.com.",
		host:    "example.com",
		want:    true,
	}, {
		name:    "trailing dot on host",
		pattern: "example.com",
		host:    "example.com.",
		want:    true,
	}, {
		name:    "wildcard matches one label",
		pattern: "*.example.com",
		host:    "foo.example.com",
		want:    true,
	}, {
		name:    "wildcard does not match two labels",
		pattern: "*.example.com",
		host:    "foo.bar.example.com",
		want:    false,
	}, {
		name:    "wildcard does not match the bare domain",
		pattern: "*.example.com",
		host:    "example.com",
		want:    false,
	}, {
		name:    "wildcard with too few labels never matches",
		pattern: "*.com",
		host:    "example.com",
		want:    false,
	}, {
		name:    "pattern with too few labels falls back to exact comparison",
		pattern: "*.com",
		host:    "*.com",
		want:    true,
	}, {
		name:    "no wildcarding for punycode labels",
		pattern: "xn--*.example.com",
		host:    "xn--abc.example.com",
		want:    false,
	}, {
		name:    "wildcard prefix within the first label",
		pattern: "baz*.example.com",
		host:    "baz1.example.com",
		want:    true,
	}, {
		name:    "wildcard suffix within the first label",
		pattern: "*baz.example.com",
		host:    "foobaz.example.com",
		want:    true,
	}, {
		name:    "wildcard infix within the first label",
		pattern: "b*z.example.com",
		host:    "buzz.example.com",
		want:    true,
	}, {
		name:    "wildcard infix mismatch",
		pattern: "b*z.example.com",
		host:    "buzza.example.com",
		want:    false,
	}, {
		name:    "wildcard outside the first label never matches",
		pattern: "foo.*.example.com",
		host:    "foo.bar.example.com",
		want:    false,
	}, {
		name:    "wildcard suffix mismatch",
		pattern: "*.example.com",
		host:    "foo.example.org",
		want:    false,
	}, {
		name:    "hostname without dots never wildcards",
		pattern: "*.example.com",
		host:    "localhost",
		want:    false,
	}, {
		name:    "empty pattern",
		pattern: "",
		host:    "example.com",
		want:    false,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := newCert("", []string{tt.pattern}, nil, true)
			if got := Matches(cert, tt.host); got != tt.want {
				t.Fatalf("Matches(%q, %q) = %v; want %v", tt.pattern, tt.host, got, tt.want)
			}
		})
	}
}

func TestMatchesIPAddresses(t *testing.T) {
	tests := []struct {
		name string
		san  net.IP
		host string
		want bool
	}{{
		name: "IPv4 equal",
		san:  net.ParseIP("192.0.2.1"),
		host: "192.0.2.1",
		want: true,
	}, {
		name: "IPv4 not equal",
		san:  net.ParseIP("192.0.2.1"),
		host: "192.0.2.2",
		want: false,
	}, {
		name: "IPv6 equal",
		san:  net.ParseIP("2001:db8::1"),
		host: "2001:db8::1",
		want: true,
	}, {
		name: "IPv6 equal with brackets",
		san:  net.ParseIP("2001:db8::1"),
		host: "[2001:db8::1]",
		want: true,
	}, {
		name: "IPv6 not equal",
		san:  net.ParseIP("2001:db8::1"),
		host: "2001:db8::2",
		want: false,
	}, {
		name: "IPv4 does not equal native IPv6",
		san:  net.IP{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		host: "192.0.2.1",
		want: false,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := newCert("", nil, []net.IP{tt.san}, true)
			if got := Matches(cert, tt.host); got != tt.want {
				t.Fatalf("Matches(ip=%s, %q) = %v; want %v", tt.san, tt.host, got, tt.want)
			}
		})
	}
}

func TestMatchesNeverMixesSANTypes(t *testing.T) {
	t.Run("IP target ignores DNS SANs", func(t *testing.T) {
		cert := newCert("", []string{"192.0.2.1"}, nil, true)
		if Matches(cert, "192.0.2.1") {
			t.Fatal("an IP target must only match IP SANs")
		}
	})

	t.Run("DNS target ignores IP SANs", func(t *testing.T) {
		cert := newCert("", nil, []net.IP{net.ParseIP("192.0.2.1")}, true)
		if Matches(cert, "example.com") {
			t.Fatal("a DNS target must only match DNS SANs")
		}
	})

	t.Run("wildcards never apply to IP targets", func(t *testing.T) {
		cert := newCert("", []string{"*.0.2.1"}, nil, true)
		if Matches(cert, "192.0.2.1") {
			t.Fatal("wildcards must never apply to IP comparison")
		}
	})
}

func TestMatchesCommonNameFallback(t *testing.T) {
	t.Run("CN matches when there are no SANs", func(t *testing.T) {
		cert := newCert("example.com", nil, nil, false)
		if !Matches(cert, "example.com") {
			t.Fatal("expected the common name to match")
		}
	})

	t.Run("CN wildcard works when there are no SANs", func(t *testing.T) {
		cert := newCert("*.example.com", nil, nil, false)
		if !Matches(cert, "foo.example.com") {
			t.Fatal("expected the common name wildcard to match")
		}
	})

	t.Run("CN is ignored when the SAN extension is present", func(t *testing.T) {
		cert := newCert("example.com", []string{"other.example.org"}, nil, true)
		if Matches(cert, "example.com") {
			t.Fatal("the common name must not be consulted once SANs exist")
		}
	})

	t.Run("CN is ignored even when SANs are of unrelated types", func(t *testing.T) {
		// A SAN extension carrying only e.g. email entries parses into empty
		// DNSNames and IPAddresses but must still suppress the CN.
		cert := newCert("example.com", nil, nil, true)
		if Matches(cert, "example.com") {
			t.Fatal("the common name must not be consulted once the SAN extension exists")
		}
	})

	t.Run("CN never wildcards against an IP target", func(t *testing.T) {
		cert := newCert("*.0.2.1", nil, nil, false)
		if Matches(cert, "192.0.2.1") {
			t.Fatal("wildcards must never apply to IP targets via the CN")
		}
	})

	t.Run("CN exact IP string still matches an IP target", func(t *testing.T) {
		cert := newCert("192.0.2.1", nil, nil, false)
		if !Matches(cert, "192.0.2.1") {
			t.Fatal("expected the exact common name to match")
		}
	})
}

func TestMatchesEdgeCases(t *testing.T) {
	t.Run("empty host never matches", func(t *testing.T) {
		cert := newCert("", []string{""}, nil, true)
		if Matches(cert, "") {
			t.Fatal("the empty host must never match")
		}
	})

	t.Run("first matching SAN wins", func(t *testing.T) {
		cert := newCert("", []string{"a.example.com", "*.example.com"}, nil, true)
		if !Matches(cert, "b.example.com") {
			t.Fatal("expected the second SAN to match")
		}
	})
}

func TestMatchNames(t *testing.T) {
	if !MatchNames([]string{"a.example.com", "b.example.com"}, "b.example.com") {
		t.Fatal("expected a match")
	}
	if MatchNames(nil, "example.com") {
		t.Fatal("expected no match with no patterns")
	}
}
