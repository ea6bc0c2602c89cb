package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sort"
)

// Resolver maps hostnames to the certificate presented during the handshake
// and to the origin decrypted requests are forwarded to. The two lookups are
// independent: the SNI name only picks the certificate, the Host header
// alone picks the origin.
type Resolver interface {
	// ResolveCertificate never returns nil. matched reports whether serverName
	// had its own entry or the default certificate was substituted.
	ResolveCertificate(serverName string) (cert *tls.Certificate, matched bool)
	// ResolveOrigin reports false when no route exists for host.
	ResolveOrigin(host string) (*Route, bool)
}

// Route is one entry of the routing table.
type Route struct {
	Host     string
	Origin   *url.URL
	Compress bool
}

// HostTable is the immutable Resolver built from the host files at startup.
// It is shared by all connections without locking.
type HostTable struct {
	certs       map[string]*tls.Certificate
	routes      map[string]*Route
	defaultHost string
	defaultCert *tls.Certificate
	unique      []*tls.Certificate
}

var _ Resolver = (*HostTable)(nil)

// NewHostTable loads every certificate referenced by hosts and builds both
// lookup tables. Hosts referencing the same cert/key pair share one loaded
// certificate. The host named defaultHost must carry a certificate.
func NewHostTable(hosts []Host, defaultHost string) (*HostTable, error) {
	t := &HostTable{
		certs:       make(map[string]*tls.Certificate),
		routes:      make(map[string]*Route),
		defaultHost: defaultHost,
	}
	loaded := make(map[HostTLS]*tls.Certificate)

	for _, host := range hosts {
		var origin *url.URL
		if host.Proxy != "" {
			u, err := ParseOrigin(host.Proxy)
			if err != nil {
				return nil, fmt.Errorf("host %s: %w", host.Domain, err)
			}
			origin = u
		}

		var cert *tls.Certificate
		if host.TLS != nil {
			cert = loaded[*host.TLS]
			if cert == nil {
				c, err := tls.LoadX509KeyPair(host.TLS.CertFile, host.TLS.KeyFile)
				if err != nil {
					return nil, fmt.Errorf("host %s: failed to load certificate %s / %s: %w",
						host.Domain, host.TLS.CertFile, host.TLS.KeyFile, err)
				}
				cert = &c
				loaded[*host.TLS] = cert
				t.unique = append(t.unique, cert)
			}
		}

		for _, name := range host.Names() {
			if _, dup := t.certs[name]; dup {
				return nil, fmt.Errorf("host %s is defined more than once", name)
			}
			if _, dup := t.routes[name]; dup {
				return nil, fmt.Errorf("host %s is defined more than once", name)
			}
			if cert != nil {
				t.certs[name] = cert
			}
			if origin != nil {
				t.routes[name] = &Route{Host: name, Origin: origin, Compress: host.Compress}
			}
		}
	}

	t.defaultCert = t.certs[defaultHost]
	if t.defaultCert == nil {
		host := FindHost(hosts, defaultHost)
		if host == nil {
			return nil, fmt.Errorf("default host %q is not defined by any host file", defaultHost)
		}
		return nil, fmt.Errorf("default host %q has no certificate configured in %s", defaultHost, host.Source)
	}
	return t, nil
}

func (t *HostTable) ResolveCertificate(serverName string) (*tls.Certificate, bool) {
	if cert, ok := t.certs[serverName]; ok {
		return cert, true
	}
	return t.defaultCert, false
}

// ResolveOrigin looks host up exactly, after dropping an explicit port.
func (t *HostTable) ResolveOrigin(host string) (*Route, bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	route, ok := t.routes[host]
	return route, ok
}

// Certificates returns each distinct loaded certificate once.
func (t *HostTable) Certificates() []*tls.Certificate {
	return t.unique
}

func (t *HostTable) DefaultHost() string {
	return t.defaultHost
}

// RouteNames and CertificateNames are sorted, for the banner and "validate".
func (t *HostTable) RouteNames() []string {
	names := make([]string, 0, len(t.routes))
	for name := range t.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *HostTable) CertificateNames() []string {
	names := make([]string, 0, len(t.certs))
	for name := range t.certs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
