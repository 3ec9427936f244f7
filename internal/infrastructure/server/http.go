package server

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"go-event-hub/internal/infrastructure/config"
)

// Server is a startable, gracefully stoppable transport.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type HTTPServer struct {
	cfg     config.HTTPConfig
	handler http.Handler
	srv     *http.Server
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		cfg:     cfg,
		handler: handler,
	}
}

func (h *HTTPServer) Start(ctx context.Context) error {
	h.srv = &http.Server{
		Addr:        h.cfg.Addr,
		Handler:     h.handler,
		ReadTimeout: h.cfg.ReadTimeout,
		// No write timeout: SSE responses stay open for the connection's
		// whole lifetime.
		IdleTimeout: h.cfg.IdleTimeout,
	}

	var eg errgroup.Group
	eg.Go(func() error {
		err := h.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	return eg.Wait()
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
