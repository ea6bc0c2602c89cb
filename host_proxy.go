package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

type routeKey struct{}

type ForwarderOptions struct {
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	ServerHeader    string
}

// Forwarder relays each decrypted request to the origin selected by its Host
// header. Bodies are streamed in both directions and every request gets
// exactly one attempt.
type Forwarder struct {
	resolver     Resolver
	logger       *zap.Logger
	serverHeader string
	proxy        *httputil.ReverseProxy
	compressed   http.Handler
}

func NewForwarder(resolver Resolver, logger *zap.Logger, opts ForwarderOptions) (*Forwarder, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.DialTimeout,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	errorLog, err := zap.NewStdLogAt(logger, zap.WarnLevel)
	if err != nil {
		return nil, err
	}

	f := &Forwarder{
		resolver:     resolver,
		logger:       logger,
		serverHeader: opts.ServerHeader,
	}
	f.proxy = &httputil.ReverseProxy{
		Rewrite:      f.rewrite,
		Transport:    transport,
		ErrorHandler: f.handleError,
		ErrorLog:     errorLog,
		// Flush immediately so streamed responses are not batched.
		FlushInterval: -1,
	}

	compress, err := NewCompressor()
	if err != nil {
		return nil, err
	}
	f.compressed = compress(f.proxy)
	return f, nil
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	route, ok := f.resolver.ResolveOrigin(r.Host)
	if !ok {
		f.logger.Info("host not found",
			zap.String("host", r.Host),
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.String("remote_addr", r.RemoteAddr),
		)
		ServeError(w, http.StatusNotFound, "Host not found: "+r.Host, f.serverHeader)
		return
	}

	if r.Header.Get(requestIDHeader) == "" {
		r.Header.Set(requestIDHeader, uuid.NewString())
	}
	sw := &statusWriter{ResponseWriter: w}
	defer func() {
		f.logger.Info("request",
			zap.String("id", r.Header.Get(requestIDHeader)),
			zap.String("method", r.Method),
			zap.String("host", r.Host),
			zap.String("uri", r.RequestURI),
			zap.String("origin", route.Origin.String()),
			zap.Int("status", sw.Status()),
			zap.Int64("bytes", sw.written),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		)
	}()

	r = r.WithContext(context.WithValue(r.Context(), routeKey{}, route))
	if route.Compress {
		f.compressed.ServeHTTP(sw, r)
		return
	}
	f.proxy.ServeHTTP(sw, r)
}

// rewrite points the outbound request at the route's origin. The client's
// Host header is kept so the origin sees the virtual host it was addressed by.
func (f *Forwarder) rewrite(pr *httputil.ProxyRequest) {
	route := pr.In.Context().Value(routeKey{}).(*Route)
	pr.SetURL(route.Origin)
	pr.Out.Host = pr.In.Host
	pr.SetXForwarded()
}

func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, err error) {
	route, _ := r.Context().Value(routeKey{}).(*Route)
	origin := ""
	if route != nil {
		origin = route.Origin.String()
	}

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		f.logger.Info("client disconnected before origin responded",
			zap.String("id", r.Header.Get(requestIDHeader)),
			zap.String("origin", origin),
			zap.String("host", r.Host),
		)
		return
	}

	f.logger.Error("proxy error",
		zap.String("id", r.Header.Get(requestIDHeader)),
		zap.String("origin", origin),
		zap.String("host", r.Host),
		zap.String("method", r.Method),
		zap.String("uri", r.RequestURI),
		zap.Error(err),
	)
	ServeError(w, http.StatusInternalServerError, "Proxy Error", f.serverHeader)
}

// statusWriter records the status and body size of a response for the access
// log. Unwrap lets http.ResponseController reach Flush and Hijack underneath.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(status int) {
	// 1xx responses are interim; the final status comes later.
	if w.status == 0 && status >= 200 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
