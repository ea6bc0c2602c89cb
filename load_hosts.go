package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Host struct {
	// Matched exactly against the SNI name and the "Host" header of incoming requests.
	Domain string `yaml:"domain"`
	// Additional names sharing this host's origin and certificate, e.g. the "www" alias.
	Aliases []string `yaml:"aliases,omitempty"`
	// Origin URL (scheme://host:port) requests are forwarded to. Empty for certificate-only hosts.
	Proxy string `yaml:"proxy,omitempty"`
	// Certificate presented for this host. Nil for route-only hosts.
	TLS *HostTLS `yaml:"tls,omitempty"`
	// Gzip origin responses for clients that accept it.
	Compress bool `yaml:"compress,omitempty"`

	// File the host was loaded from, for error messages.
	Source string `yaml:"-"`
}

type HostTLS struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

const defaultHostFile = `# Default host configuration. This file has been created automatically.
# Point "proxy" at your backend and "tls" at your certificate files.

domain: example.com
aliases:
  - www.example.com
proxy: http://127.0.0.1:3000
tls:
  cert_file: /etc/letsencrypt/live/example.com/fullchain.pem
  key_file: /etc/letsencrypt/live/example.com/privkey.pem
`

// Names returns the domain followed by its aliases.
func (h Host) Names() []string {
	return append([]string{h.Domain}, h.Aliases...)
}

func (h Host) validate() error {
	if strings.TrimSpace(h.Domain) == "" {
		return errors.New("domain is required")
	}
	for _, alias := range h.Aliases {
		if strings.TrimSpace(alias) == "" {
			return errors.New("aliases must not contain empty names")
		}
	}
	if h.Proxy != "" {
		if _, err := ParseOrigin(h.Proxy); err != nil {
			return err
		}
	}
	if h.TLS != nil && (h.TLS.CertFile == "" || h.TLS.KeyFile == "") {
		return errors.New("tls requires both cert_file and key_file")
	}
	if h.Proxy == "" && h.TLS == nil {
		return errors.New("host needs a proxy origin, a tls certificate, or both")
	}
	return nil
}

// ParseOrigin parses an origin URL of the form scheme://host[:port].
func ParseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy origin %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid proxy origin %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy origin %q: missing host", raw)
	}
	return u, nil
}

func GetHostsDirectory(dataDir string) string {
	return filepath.Join(dataDir, "hosts")
}

// LoadHosts reads every *.yml / *.yaml file in hostsDir. A missing directory is
// created together with an example host file. Any unreadable or invalid file,
// or a hostname claimed twice, fails the whole load.
func LoadHosts(hostsDir string) ([]Host, error) {
	if _, err := os.Stat(hostsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(hostsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create hosts directory: %w", err)
		}
		path := filepath.Join(hostsDir, "default.yml")
		if err := os.WriteFile(path, []byte(defaultHostFile), 0644); err != nil {
			return nil, fmt.Errorf("failed to create default hosts file: %w", err)
		}
	}

	files, err := os.ReadDir(hostsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read hosts directory: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var hosts []Host
	seen := make(map[string]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if !strings.HasSuffix(file.Name(), ".yml") && !strings.HasSuffix(file.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(hostsDir, file.Name())
		host, err := loadHostFile(path)
		if err != nil {
			return nil, err
		}
		for _, name := range host.Names() {
			if prev, ok := seen[name]; ok {
				return nil, fmt.Errorf("host %q in %s is already defined in %s", name, path, prev)
			}
			seen[name] = path
		}
		hosts = append(hosts, host)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no host files found in %s", hostsDir)
	}
	return hosts, nil
}

func loadHostFile(path string) (Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Host{}, fmt.Errorf("failed to read host file %s: %w", path, err)
	}
	var host Host
	if err := yaml.Unmarshal(data, &host); err != nil {
		return Host{}, fmt.Errorf("failed to parse host file %s: %w", path, err)
	}
	if err := host.validate(); err != nil {
		return Host{}, fmt.Errorf("invalid host file %s: %w", path, err)
	}
	host.Source = path
	return host, nil
}

// FindHost returns the host that names name as its domain or as an alias.
func FindHost(hosts []Host, name string) *Host {
	for i := range hosts {
		for _, n := range hosts[i].Names() {
			if n == name {
				return &hosts[i]
			}
		}
	}
	return nil
}
