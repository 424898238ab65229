// Package tlsconf builds TLS configurations from PEM files on disk.
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Files names the PEM files making up a TLS configuration.
type Files struct {
	CA   string
	Cert string
	Key  string
}

// Empty reports whether no file is set.
func (f Files) Empty() bool {
	return f.CA == "" && f.Cert == "" && f.Key == ""
}

// Client returns a client configuration, or nil when no file is set.
func Client(f Files) (*tls.Config, error) {
	if f.Empty() {
		return nil, nil
	}

	config := &tls.Config{MinVersion: tls.VersionTLS12}
	if f.CA != "" {
		pool, err := loadPool(f.CA)
		if err != nil {
			return nil, err
		}
		config.RootCAs = pool
	}

	if f.Cert != "" || f.Key != "" {
		cert, err := loadPair(f)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}
	return config, nil
}

// Server returns a listener configuration. A CA turns on client
// certificate verification.
func Server(f Files) (*tls.Config, error) {
	if f.Cert == "" || f.Key == "" {
		return nil, errors.New("tls cert and key required")
	}
	cert, err := loadPair(f)
	if err != nil {
		return nil, err
	}

	config := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if f.CA != "" {
		pool, err := loadPool(f.CA)
		if err != nil {
			return nil, err
		}
		config.ClientCAs = pool
		config.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return config, nil
}

func loadPair(f Files) (tls.Certificate, error) {
	if f.Cert == "" || f.Key == "" {
		return tls.Certificate{}, errors.New("both tls cert and key are required")
	}
	cert, err := tls.LoadX509KeyPair(f.Cert, f.Key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	return cert, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("failed to parse CA bundle")
	}
	return pool, nil
}
