//go:build !linux

package ime

import (
	"context"
	"errors"

	"textservice/internal/config"
)

// ErrUnsupported is returned by Server.Run where IBus does not exist.
var ErrUnsupported = errors.New("ime: IBus is only available on Linux")

// Server is a stub for platforms without IBus.
type Server struct{}

// NewServer returns a stub server.
func NewServer(cfg config.IBusConfig, opts EngineOptions) *Server {
	return &Server{}
}

// Run always fails with ErrUnsupported.
func (s *Server) Run(ctx context.Context) error {
	return ErrUnsupported
}

// Stop is a no-op.
func (s *Server) Stop() error {
	return nil
}
