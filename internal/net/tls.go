package net

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

const (
	DefaultCertPath = "server.crt"
	DefaultKeyPath  = "server.key"
)

var (
	// ErrNoCertificates reports a certificate file without any CERTIFICATE block.
	ErrNoCertificates = errors.New("no certificates found")
	// ErrNoPrivateKey reports a key file without a PKCS8 or RSA private key.
	ErrNoPrivateKey = errors.New("no private key found")
	// ErrKeyMismatch reports a private key that does not belong to the leaf
	// certificate.
	ErrKeyMismatch = errors.New("private key does not match certificate")
)

// LoadTLSConfig reads a PEM certificate chain and private key from disk and
// returns a server TLS configuration. The key may be PKCS8 or PKCS1 RSA;
// PKCS8 is tried first.
func LoadTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate %s: %w", certPath, err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", keyPath, err)
	}
	cert, err := ParseKeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ParseKeyPair builds a certificate from PEM encoded material.
func ParseKeyPair(certPEM, keyPEM []byte) (tls.Certificate, error) {
	var cert tls.Certificate
	for rest := certPEM; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert.Certificate = append(cert.Certificate, block.Bytes)
		}
	}
	if len(cert.Certificate) == 0 {
		return tls.Certificate{}, ErrNoCertificates
	}

	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}
	cert.PrivateKey = key

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}
	cert.Leaf = leaf
	if !keyMatches(leaf, key) {
		return tls.Certificate{}, ErrKeyMismatch
	}
	return cert, nil
}

func keyMatches(leaf *x509.Certificate, key crypto.PrivateKey) bool {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return false
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	return ok && pub.Equal(leaf.PublicKey)
}

func parsePrivateKey(keyPEM []byte) (crypto.PrivateKey, error) {
	var blocks []*pem.Block
	for rest := keyPEM; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	for _, block := range blocks {
		if block.Type != "PRIVATE KEY" {
			continue
		}
		if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
	}
	for _, block := range blocks {
		if block.Type != "RSA PRIVATE KEY" {
			continue
		}
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
	}
	return nil, ErrNoPrivateKey
}
