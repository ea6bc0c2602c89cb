package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/ocsp"
)

const maxOCSPResponseSize = 1 << 20

var errNoOCSPServer = errors.New("certificate names no OCSP responder")

// StapleOCSP asks the leaf's OCSP responder for a fresh response and staples
// it to cert. The chain must contain the issuer right after the leaf.
func StapleOCSP(ctx context.Context, client *http.Client, cert *tls.Certificate) error {
	if len(cert.Certificate) < 2 {
		return errors.New("certificate chain has no issuer")
	}
	leaf := cert.Leaf
	if leaf == nil {
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return fmt.Errorf("failed to parse leaf certificate: %w", err)
		}
	}
	if len(leaf.OCSPServer) == 0 {
		return errNoOCSPServer
	}
	issuer, err := x509.ParseCertificate(cert.Certificate[1])
	if err != nil {
		return fmt.Errorf("failed to parse issuer certificate: %w", err)
	}

	reqDER, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return fmt.Errorf("failed to create OCSP request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, leaf.OCSPServer[0], bytes.NewReader(reqDER))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")
	req.Header.Set("Accept", "application/ocsp-response")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("OCSP request to %s failed: %w", leaf.OCSPServer[0], err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OCSP responder %s returned %s", leaf.OCSPServer[0], resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read OCSP response: %w", err)
	}

	parsed, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		return fmt.Errorf("invalid OCSP response: %w", err)
	}
	if parsed.Status != ocsp.Good {
		return fmt.Errorf("OCSP status for %s is not good (%d)", leaf.Subject.CommonName, parsed.Status)
	}
	cert.OCSPStaple = raw
	return nil
}

// StapleAll staples every distinct certificate of the table. Failures are
// logged and leave the certificate without a staple.
func StapleAll(ctx context.Context, client *http.Client, table *HostTable, logger *zap.Logger) {
	for _, cert := range table.Certificates() {
		name := ""
		if cert.Leaf != nil {
			name = cert.Leaf.Subject.CommonName
		}
		if err := StapleOCSP(ctx, client, cert); err != nil {
			logger.Warn("OCSP stapling skipped", zap.String("certificate", name), zap.Error(err))
			continue
		}
		logger.Info("OCSP response stapled", zap.String("certificate", name))
	}
}
