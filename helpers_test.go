package main

import (
	"os"
	"path/filepath"
	"testing"

	"snigate/cli"
)

// writeCert generates a self-signed certificate for host into dir and returns
// the matching HostTLS entry.
func writeCert(t *testing.T, dir, host string, extraNames ...string) *HostTLS {
	t.Helper()
	certPath, keyPath, err := cli.GenerateSelfSignedCert(dir, host, extraNames...)
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert(%s): %v", host, err)
	}
	return &HostTLS{CertFile: certPath, KeyFile: keyPath}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
