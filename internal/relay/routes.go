// Package relay wires HTTP handlers into a ServeMux for the relay service.
package relay

import "net/http"

// Routes configures and returns an HTTP ServeMux with the relay's endpoints:
// the health check and the WebSocket endpoint.
func Routes(g *Gateway) *http.ServeMux {
	h := NewHandler(g)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.ServeHealth)
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}
