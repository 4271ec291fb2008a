package http

import (
	"io"
	"net/http"

	"github.com/antikraj/plugin-license-server1/pkg/contracts"
)

// ServeHome answers the service root with a plain-text banner so simple
// uptime probes and browsers get a human-readable reply.
func ServeHome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.WriteString(w, contracts.ServiceBanner)
		}
	}
}
