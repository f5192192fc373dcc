package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"golang.org/x/crypto/pkcs12"
)

// ListenerProvider creates the listening socket for a server.
type ListenerProvider interface {
	Listen(addr string) (net.Listener, error)
}

// TCPProvider listens on plain TCP.
type TCPProvider struct{}

// Listen announces on addr.
func (TCPProvider) Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// TLSProvider listens on TCP and wraps accepted connections in TLS.
type TLSProvider struct {
	Config *tls.Config
}

// Listen announces on addr with TLS.
func (p *TLSProvider) Listen(addr string) (net.Listener, error) {
	if p.Config == nil {
		return nil, errors.New("server: TLS provider without config")
	}
	return tls.Listen("tcp", addr, p.Config)
}

// NewPKCS12Provider returns a TLS provider using the key and certificate
// stored in a PKCS#12 keystore.
func NewPKCS12Provider(keystore []byte, password string) (*TLSProvider, error) {
	key, cert, err := pkcs12.Decode(keystore, password)
	if err != nil {
		return nil, fmt.Errorf("server: decoding keystore: %w", err)
	}
	return &TLSProvider{Config: &tls.Config{
		MinVersion: tls.VersionTLS12,
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  key,
			Leaf:        cert,
		}},
	}}, nil
}

// NewPEMProvider returns a TLS provider from a PEM encoded certificate chain
// and private key.
func NewPEMProvider(certPEM, keyPEM []byte) (*TLSProvider, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("server: loading key pair: %w", err)
	}
	return &TLSProvider{Config: &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}}, nil
}
