package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type HTTP struct {
	srv *http.Server
}

func NewHTTP(addr string, h http.Handler) *HTTP {
	return &HTTP{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start blocks until the listener fails or Stop is called. A clean stop
// returns nil.
func (h *HTTP) Start() error {
	if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTP) Stop(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
