package netsec

import (
	"crypto/tls"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/netfetch/netfetch/internal/mocks"
)

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	if policy.MinVersion != tls.VersionTLS10 {
		t.Fatal("unexpected minimum version")
	}
	if policy.MaxVersion != tls.VersionTLS13 {
		t.Fatal("unexpected maximum version")
	}
	if policy.CipherSuites[0] != tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256 {
		t.Fatal("the strongest suite must come first")
	}
	last := policy.CipherSuites[len(policy.CipherSuites)-1]
	if last != tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA {
		t.Fatal("the legacy 3DES suite must come last")
	}
}

func TestVersionByName(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    uint16
		wantErr error
	}{{
		name:    "with TLSv1.3",
		version: "TLSv1.3",
		want:    tls.VersionTLS13,
	}, {
		name:    "with TLSv1.2",
		version: "TLSv1.2",
		want:    tls.VersionTLS12,
	}, {
		name:    "with TLSv1.1",
		version: "TLSv1.1",
		want:    tls.VersionTLS11,
	}, {
		name:    "with TLSv1.0",
		version: "TLSv1.0",
		want:    tls.VersionTLS10,
	}, {
		name:    "with TLSv1",
		version: "TLSv1",
		want:    tls.VersionTLS10,
	}, {
		name:    "with an invalid version",
		version: "TLSv999",
		wantErr: ErrInvalidTLSVersion,
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VersionByName(tt.version)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("not the error we expected: %+v", err)
			}
			if got != tt.want {
				t.Fatalf("not the version we expected: %+v", got)
			}
			if tt.wantErr != nil && !errors.Is(err, ErrConfig) {
				t.Fatal("version errors must wrap ErrConfig")
			}
		})
	}
}

func TestPolicyTLSConfig(t *testing.T) {
	policy := DefaultPolicy()
	verifier := &mocks.CertVerifier{
		MockVerifyPeer: func(host string, rawCerts [][]byte) error {
			return nil
		},
	}
	config := policy.TLSConfig("api.example.com", verifier)

	t.Run("sets the server name", func(t *testing.T) {
		if config.ServerName != "api.example.com" {
			t.Fatal("unexpected server name")
		}
	})

	t.Run("carries the policy versions and suites", func(t *testing.T) {
		if config.MinVersion != policy.MinVersion {
			t.Fatal("unexpected minimum version")
		}
		if config.MaxVersion != policy.MaxVersion {
			t.Fatal("unexpected maximum version")
		}
		if diff := cmp.Diff(policy.CipherSuites, config.CipherSuites); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("never enables renegotiation", func(t *testing.T) {
		if config.Renegotiation != tls.RenegotiateNever {
			t.Fatal("unexpected renegotiation setting")
		}
	})

	t.Run("installs the verifier callback", func(t *testing.T) {
		if !config.InsecureSkipVerify {
			t.Fatal("expected InsecureSkipVerify: the verifier replaces the built-in checks")
		}
		if config.VerifyPeerCertificate == nil {
			t.Fatal("expected a verification callback")
		}
		var gotHost string
		verifier.MockVerifyPeer = func(host string, rawCerts [][]byte) error {
			gotHost = host
			return nil
		}
		if err := config.VerifyPeerCertificate(nil, nil); err != nil {
			t.Fatal(err)
		}
		if gotHost != "api.example.com" {
			t.Fatal("the callback must close over the attempt's host")
		}
	})

	t.Run("returns a fresh suites slice", func(t *testing.T) {
		config.CipherSuites[0] = 0
		if policy.CipherSuites[0] == 0 {
			t.Fatal("mutating the config must not mutate the policy")
		}
	})
}
