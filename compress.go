package main

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// compressMinSize keeps tiny responses uncompressed.
const compressMinSize = 1024

// NewCompressor returns a middleware that gzips responses for clients sending
// "Accept-Encoding: gzip". Responses the origin already encoded pass through
// unchanged, and bodies are compressed while they stream.
func NewCompressor() (func(http.Handler) http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(compressMinSize),
		gzhttp.CompressionLevel(6),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
	}
	return func(h http.Handler) http.Handler {
		return wrap(h)
	}, nil
}
