package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/netutil"
)

type ListenerOptions struct {
	// Bounds the TLS handshake together with reading the request headers.
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	// 0 means unlimited.
	MaxConnections int
}

// Listener is a bound socket paired with the http.Server that serves it.
type Listener struct {
	name   string
	ln     net.Listener
	server *http.Server
}

// NewSNIConfig returns the TLS configuration of the secure listener. The
// certificate is picked per handshake from the ClientHello's SNI name; unknown
// names get the resolver's default certificate unless strict is set, in which
// case the handshake is aborted. Clients sending no SNI always get the default.
func NewSNIConfig(resolver Resolver, strict bool, logger *zap.Logger) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"h2", "http/1.1"},
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			cert, matched := resolver.ResolveCertificate(hello.ServerName)
			if !matched {
				if strict && hello.ServerName != "" {
					return nil, fmt.Errorf("no certificate for server name %q", hello.ServerName)
				}
				logger.Debug("unknown server name, presenting default certificate",
					zap.String("server_name", hello.ServerName),
					zap.Stringer("remote_addr", hello.Conn.RemoteAddr()),
				)
			}
			return cert, nil
		},
	}
}

// StartSecureListener binds addr and prepares a TLS server for it. Serving
// begins with Serve; a bind failure is returned immediately.
func StartSecureListener(addr string, tlsConfig *tls.Config, handler http.Handler, logger *zap.Logger, opts ListenerOptions) (*Listener, error) {
	srv, err := newServer(handler, logger, opts)
	if err != nil {
		return nil, err
	}
	srv.TLSConfig = tlsConfig.Clone()
	// Registers the handler for connections that negotiate "h2" over ALPN.
	if err := http2.ConfigureServer(srv, &http2.Server{IdleTimeout: opts.IdleTimeout}); err != nil {
		return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
	}

	ln, err := listen(addr, opts.MaxConnections)
	if err != nil {
		return nil, err
	}
	return &Listener{
		name:   "https",
		ln:     tls.NewListener(ln, srv.TLSConfig),
		server: srv,
	}, nil
}

// StartInsecureListener binds addr for plaintext HTTP served by handler.
func StartInsecureListener(addr string, handler http.Handler, logger *zap.Logger, opts ListenerOptions) (*Listener, error) {
	srv, err := newServer(handler, logger, opts)
	if err != nil {
		return nil, err
	}
	ln, err := listen(addr, opts.MaxConnections)
	if err != nil {
		return nil, err
	}
	return &Listener{name: "http", ln: ln, server: srv}, nil
}

func newServer(handler http.Handler, logger *zap.Logger, opts ListenerOptions) (*http.Server, error) {
	// Handshake failures and malformed requests are reported by net/http
	// through ErrorLog; they only cost the one connection.
	errorLog, err := zap.NewStdLogAt(logger, zap.WarnLevel)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: opts.HandshakeTimeout,
		IdleTimeout:       opts.IdleTimeout,
		ErrorLog:          errorLog,
	}, nil
}

func listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

func (l *Listener) Name() string {
	return l.name
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve blocks until the listener fails or Shutdown is called, in which case
// it returns nil.
func (l *Listener) Serve() error {
	err := l.server.Serve(l.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

// Close releases the socket of a listener that was never served.
func (l *Listener) Close() error {
	return l.ln.Close()
}
