package main

import (
	"fmt"
	"net/http"
	"strconv"
)

// ServerHeader returns the "Server" header for responses generated by snigate
// itself. The version is only included when showVersion is set.
func ServerHeader(showVersion bool) string {
	if showVersion {
		return "snigate/" + VERSION
	}
	return "snigate"
}

// ServeError writes a short plaintext response and asks the server to close
// the connection once it is flushed.
func ServeError(w http.ResponseWriter, status int, body string, serverHeader string) {
	if body == "" {
		body = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	h := w.Header()
	if serverHeader != "" {
		h.Set("Server", serverHeader)
	}
	h.Set("Connection", "close")
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Length", strconv.Itoa(len(body)+1))
	w.WriteHeader(status)
	fmt.Fprintln(w, body)
}
