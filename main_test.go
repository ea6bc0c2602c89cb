package main

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommand_VersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	if code := runCommand([]string{"--version"}, &out); code != 0 {
		t.Errorf("--version: exit %d", code)
	}
	if got := out.String(); got != "snigate version "+VERSION+"\n" {
		t.Errorf("--version: got %q", got)
	}

	out.Reset()
	if code := runCommand([]string{"-h"}, &out); code != 0 {
		t.Errorf("-h: exit %d", code)
	}
	if !strings.Contains(out.String(), "cert generate <host> [dir]") {
		t.Errorf("-h: got %q", out.String())
	}
}

func TestRunCommand_Unknown(t *testing.T) {
	var out bytes.Buffer
	if code := runCommand([]string{"--frobnicate"}, &out); code != 1 {
		t.Errorf("exit: got %d, want 1", code)
	}
	if !strings.HasPrefix(out.String(), "Unknown argument: --frobnicate\n") {
		t.Errorf("output: got %q", out.String())
	}

	out.Reset()
	if code := runCommand([]string{"cert", "revoke", "a"}, &out); code != 1 {
		t.Errorf("cert revoke: exit %d, want 1", code)
	}
}

func TestRunCommand_CertGenerate(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	if code := runCommand([]string{"cert", "generate", "floral.monster", dir}, &out); code != 0 {
		t.Fatalf("exit %d: %s", code, out.String())
	}
	cert, err := tls.LoadX509KeyPair(filepath.Join(dir, "floral.monster.crt"), filepath.Join(dir, "floral.monster.key"))
	if err != nil {
		t.Fatalf("generated pair does not load: %v", err)
	}
	if cert.Leaf.Subject.CommonName != "floral.monster" {
		t.Errorf("CN: got %s", cert.Leaf.Subject.CommonName)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	tlsFiles := writeCert(t, filepath.Join(dir, "certs"), "floral.monster")
	writeFile(t, GetConfigPath(dir), "tls:\n  default_host: floral.monster\n")
	writeFile(t, filepath.Join(GetHostsDirectory(dir), "floral.yml"), fmt.Sprintf(`domain: floral.monster
aliases:
  - www.floral.monster
proxy: http://127.0.0.1:3000
tls:
  cert_file: %s
  key_file: %s
`, tlsFiles.CertFile, tlsFiles.KeyFile))

	var out bytes.Buffer
	if code := validate(dir, &out); code != 0 {
		t.Fatalf("exit %d: %s", code, out.String())
	}
	for _, want := range []string{
		"  floral.monster -> http://127.0.0.1:3000\n",
		"  www.floral.monster -> http://127.0.0.1:3000\n",
		"Default certificate: floral.monster\n",
		"Default host file: " + filepath.Join(GetHostsDirectory(dir), "floral.yml") + "\n",
		"Configuration is valid\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestValidate_ThroughDataDirEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SNIGATE_DATA_DIR", dir)
	writeFile(t, GetConfigPath(dir), "tls:\n  default_host: floral.monster\n")
	// The generated default host file points at certificates that do not exist.
	var out bytes.Buffer
	if code := runCommand([]string{"validate"}, &out); code != 1 {
		t.Errorf("exit: got %d, want 1\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "Invalid hosts:") {
		t.Errorf("output: got %q", out.String())
	}
}

func TestValidate_BadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, GetConfigPath(dir), "server:\n  https_port: 70000\n")

	var out bytes.Buffer
	if code := validate(dir, &out); code != 1 {
		t.Errorf("exit: got %d, want 1", code)
	}
	if !strings.Contains(out.String(), "Invalid configuration:") {
		t.Errorf("output: got %q", out.String())
	}
}
