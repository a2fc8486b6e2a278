package net

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	stdnet "net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type keyFormat int

const (
	keyPKCS8 keyFormat = iota
	keyPKCS1
)

// writeSelfSigned writes a localhost certificate and key into dir.
func writeSelfSigned(t *testing.T, dir string, format keyFormat) (certPath, keyPath string) {
	t.Helper()

	var (
		public  any
		private any
		keyPEM  *pem.Block
	)
	switch format {
	case keyPKCS1:
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate rsa key: %v", err)
		}
		public, private = &key.PublicKey, key
		keyPEM = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	default:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			t.Fatalf("generate ecdsa key: %v", err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatalf("marshal pkcs8: %v", err)
		}
		public, private = &key.PublicKey, key
		keyPEM = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []stdnet.IP{stdnet.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, public, private)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	certPath = filepath.Join(dir, "server.crt")
	keyPath = filepath.Join(dir, "server.key")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write certificate: %v", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(keyPEM), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}

func TestLoadTLSConfigAcceptsPKCS8AndPKCS1(t *testing.T) {
	for _, tc := range []struct {
		name   string
		format keyFormat
	}{
		{name: "pkcs8", format: keyPKCS8},
		{name: "pkcs1", format: keyPKCS1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			certPath, keyPath := writeSelfSigned(t, t.TempDir(), tc.format)
			config, err := LoadTLSConfig(certPath, keyPath)
			if err != nil {
				t.Fatalf("expected key pair to load: %v", err)
			}
			if len(config.Certificates) != 1 || config.Certificates[0].Leaf == nil {
				t.Fatalf("expected a single parsed certificate, got %+v", config.Certificates)
			}
			if config.Certificates[0].Leaf.Subject.CommonName != "localhost" {
				t.Fatalf("unexpected leaf subject %v", config.Certificates[0].Leaf.Subject)
			}
		})
	}
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir, keyPKCS8)

	if _, err := LoadTLSConfig(filepath.Join(dir, "missing.crt"), keyPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing certificate to fail with ErrNotExist, got %v", err)
	}
	if _, err := LoadTLSConfig(certPath, filepath.Join(dir, "missing.key")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing key to fail with ErrNotExist, got %v", err)
	}
}

func TestParseKeyPairRejectsEmptyMaterial(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir, keyPKCS8)
	certPEM, _ := os.ReadFile(certPath)
	keyPEM, _ := os.ReadFile(keyPath)

	if _, err := ParseKeyPair([]byte("not pem"), keyPEM); !errors.Is(err, ErrNoCertificates) {
		t.Fatalf("expected ErrNoCertificates, got %v", err)
	}
	if _, err := ParseKeyPair(certPEM, certPEM); !errors.Is(err, ErrNoPrivateKey) {
		t.Fatalf("expected ErrNoPrivateKey, got %v", err)
	}
}

func TestLoadTLSConfigRejectsMismatchedKey(t *testing.T) {
	certPath, _ := writeSelfSigned(t, t.TempDir(), keyPKCS8)
	_, otherKeyPath := writeSelfSigned(t, t.TempDir(), keyPKCS1)

	if _, err := LoadTLSConfig(certPath, otherKeyPath); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch for a key from another pair, got %v", err)
	}
}
