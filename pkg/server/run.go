package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Run starts the server and blocks until a shutdown signal arrives.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	if s.cfg.MetricsInterval > 0 {
		s.metrics.StartReporting(s.cfg.MetricsInterval.Std(), os.Stderr, s.ctx.Done())
	}

	slog.Info("parley server running", "bind", s.Addr().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}
