// Package httpserver builds the process http.Server with shared defaults.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with slow-client protection enabled. Handler-level
// timeouts stay with the handlers; saga steps carry their own deadlines.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
