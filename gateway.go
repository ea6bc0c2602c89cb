package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	ocspTimeout     = 15 * time.Second
)

// Gateway owns the resolver, the request handlers and both listeners for the
// lifetime of the process.
type Gateway struct {
	cfg        Config
	logger     *zap.Logger
	table      *HostTable
	forwarder  *Forwarder
	redirector *Redirector

	secure   *Listener
	insecure *Listener
}

// NewGateway loads every certificate named by hosts and wires the handlers.
// Any configuration problem is returned before a socket is opened.
func NewGateway(cfg Config, hosts []Host, logger *zap.Logger) (*Gateway, error) {
	table, err := NewHostTable(hosts, cfg.TLS.DefaultHost)
	if err != nil {
		return nil, err
	}
	if cfg.TLS.OCSPStapling {
		ctx, cancel := context.WithTimeout(context.Background(), ocspTimeout)
		StapleAll(ctx, &http.Client{Timeout: ocspTimeout}, table, logger)
		cancel()
	}

	serverHeader := ServerHeader(cfg.Server.ShowServerVersion)
	forwarder, err := NewForwarder(table, logger, ForwarderOptions{
		DialTimeout:     cfg.Timeouts.OriginDial,
		ResponseTimeout: cfg.Timeouts.OriginResponse,
		ServerHeader:    serverHeader,
	})
	if err != nil {
		return nil, err
	}

	return &Gateway{
		cfg:        cfg,
		logger:     logger,
		table:      table,
		forwarder:  forwarder,
		redirector: NewRedirector(logger, serverHeader),
	}, nil
}

// Start binds the secure and the insecure listener. If either bind fails no
// socket is left open.
func (g *Gateway) Start() error {
	opts := ListenerOptions{
		HandshakeTimeout: g.cfg.Timeouts.Handshake,
		IdleTimeout:      g.cfg.Timeouts.Idle,
		MaxConnections:   g.cfg.Server.MaxConnections,
	}

	tlsConfig := NewSNIConfig(g.table, g.cfg.TLS.StrictSNI, g.logger)
	secure, err := StartSecureListener(g.cfg.SecureAddr(), tlsConfig, g.forwarder, g.logger, opts)
	if err != nil {
		return err
	}
	insecure, err := StartInsecureListener(g.cfg.InsecureAddr(), g.redirector, g.logger, opts)
	if err != nil {
		secure.Close()
		return err
	}
	g.secure, g.insecure = secure, insecure

	g.logger.Info("snigate is running",
		zap.String("version", VERSION),
		zap.Stringer("https", secure.Addr()),
		zap.Stringer("http", insecure.Addr()),
		zap.Int("routes", len(g.table.RouteNames())),
		zap.Int("certificates", len(g.table.Certificates())),
		zap.String("default_host", g.table.DefaultHost()),
	)
	return nil
}

// Serve runs both listeners until ctx is cancelled or one of them fails, then
// shuts both down, draining in-flight requests for up to shutdownTimeout.
func (g *Gateway) Serve(ctx context.Context) error {
	if g.secure == nil || g.insecure == nil {
		return errors.New("gateway has not been started")
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(g.secure.Serve)
	eg.Go(g.insecure.Serve)
	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			g.secure.Shutdown(shutdownCtx),
			g.insecure.Shutdown(shutdownCtx),
		)
	})
	return eg.Wait()
}

func (g *Gateway) SecureAddr() string {
	return g.secure.Addr().String()
}

func (g *Gateway) InsecureAddr() string {
	return g.insecure.Addr().String()
}
