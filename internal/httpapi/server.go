package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/adapters/in/http/middleware"
)

// ServerConfig carries the listener and proxy-trust settings for the
// control surface's HTTP server.
type ServerConfig struct {
	Host           string // GUERITE_HTTP_API_HOST
	Port           int    // GUERITE_HTTP_API_PORT
	TrustedProxies []*net.IPNet
}

// NewServer builds the *http.Server for the control surface: the
// standard library mux with the teacher's logging/security/panic-recovery
// middleware chain wrapped around it.
func NewServer(handler *Handler, cfg ServerConfig, log zerowrap.Logger) *http.Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	chain := middleware.Chain(
		middleware.PanicRecovery(log),
		middleware.RequestLogger(log, cfg.TrustedProxies),
		middleware.SecurityHeaders,
		middleware.CORS,
	)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
