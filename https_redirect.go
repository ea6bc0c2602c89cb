package main

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Redirector answers every plaintext request with a 301 to the https://
// equivalent of the requested URL.
type Redirector struct {
	logger       *zap.Logger
	serverHeader string
}

func NewRedirector(logger *zap.Logger, serverHeader string) *Redirector {
	return &Redirector{logger: logger, serverHeader: serverHeader}
}

func (rd *Redirector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if host == "" {
		rd.logger.Info("redirect rejected: missing Host header",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("uri", r.RequestURI),
		)
		ServeError(w, http.StatusBadRequest, "Missing Host header", rd.serverHeader)
		return
	}

	// RequestURI is the raw request target, so path escapes and the query
	// string survive untouched. Absolute-form targets are reduced to origin-form
	// and the asterisk-form of OPTIONS maps to the root.
	uri := r.RequestURI
	switch {
	case uri == "*":
		uri = "/"
	case !strings.HasPrefix(uri, "/"):
		uri = r.URL.RequestURI()
	}
	location := "https://" + host + uri

	rd.logger.Info("redirect",
		zap.String("method", r.Method),
		zap.String("host", host),
		zap.String("uri", uri),
		zap.String("location", location),
		zap.String("remote_addr", r.RemoteAddr),
	)

	h := w.Header()
	if rd.serverHeader != "" {
		h.Set("Server", rd.serverHeader)
	}
	h.Set("Connection", "close")
	h.Set("Location", location)
	h.Set("Content-Length", "0")
	w.WriteHeader(http.StatusMovedPermanently)
}
