// Package server owns the TCP listener and the http.Server bound to it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	applog "github.com/janisto/greeter-web/internal/platform/logging"
)

// State is the listener lifecycle position.
type State int32

const (
	// NotListening is the state before a successful Listen.
	NotListening State = iota
	// Listening means the address is bound and the startup line was logged.
	Listening
	// Closed is terminal; it is entered by Shutdown.
	Closed
)

func (s State) String() string {
	switch s {
	case NotListening:
		return "NOT_LISTENING"
	case Listening:
		return "LISTENING"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	// ErrAlreadyListening is returned by Listen on a bound Server.
	ErrAlreadyListening = errors.New("server: already listening")
	// ErrNotListening is returned by Serve before Listen succeeded.
	ErrNotListening = errors.New("server: not listening")
	// ErrClosed is returned by Listen after Shutdown.
	ErrClosed = errors.New("server: closed")
)

// BindError reports that the listen address could not be bound, typically
// because another process already holds the port.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("server: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Server serves one handler on one listener.
type Server struct {
	appName string
	srv     *http.Server

	mu      sync.Mutex
	ln      net.Listener
	serving bool
	state   atomic.Int32
}

// New returns a Server for handler that will bind addr. appName prefixes the startup log line.
func New(addr, appName string, handler http.Handler) *Server {
	return &Server{
		appName: appName,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    64 << 10,
		},
	}
}

// State reports the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address, or the configured one before Listen succeeds.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

// Listen binds the configured address and logs the startup line. Request
// contexts derive from ctx (without its cancellation), so a logger stored in
// ctx becomes the base of every request logger.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case Listening:
		return ErrAlreadyListening
	case Closed:
		return ErrClosed
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.srv.Addr)
	if err != nil {
		return &BindError{Addr: s.srv.Addr, Err: err}
	}
	s.ln = ln
	s.state.Store(int32(Listening))

	base := context.WithoutCancel(ctx)
	logger := applog.LoggerFromContext(ctx)
	s.srv.BaseContext = func(net.Listener) context.Context { return base }
	if errLog, err := zap.NewStdLogAt(logger, zap.WarnLevel); err == nil {
		s.srv.ErrorLog = errLog
	}

	port := 0
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	applog.LogInfo(ctx, StartupMessage(s.appName, port),
		zap.String("addr", ln.Addr().String()),
		zap.Int("port", port),
	)
	return nil
}

// Serve accepts connections until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	if ln != nil {
		s.serving = true
	}
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires. The Server cannot be restarted afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.state.Store(int32(Closed))
	ln, serving := s.ln, s.serving
	s.mu.Unlock()

	// http.Server only closes listeners passed to its Serve.
	if ln != nil && !serving {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	return s.srv.Shutdown(ctx)
}

// StartupMessage is the line logged once the listener is bound.
func StartupMessage(appName string, port int) string {
	return fmt.Sprintf("%s listening on port %d", appName, port)
}
