package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

// Server wraps http.Server with a shutdown sequence bound to a context:
// when the context is cancelled the server is drained with a timeout and the
// cleanup funcs run afterwards.
type Server struct {
	*http.Server
	// CleanUpFuncs run after the server has drained, in registration order.
	CleanUpFuncs    []func(ctx context.Context)
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

func (s *Server) Start(ctx context.Context) {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 20 * time.Second
	}

	s.Server.BaseContext = func(_ net.Listener) context.Context {
		return ctx
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()

		s.Logger.Info("server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()

		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			s.Logger.Error("server shutdown: " + err.Error())
		}

		for _, cf := range s.CleanUpFuncs {
			cf(shutdownCtx)
		}
	}()

	s.Logger.Info("server started at " + s.Server.Addr)

	err := s.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Logger.Error("server exit: " + err.Error())
		os.Exit(1)
	}

	<-done
}
