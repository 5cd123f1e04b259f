// Package server is a thin RESP-speaking TCP front end over
// pkg/executor and pkg/storage (SPEC_FULL.md §4.14): it recognizes only
// PING, the six script commands and a small passthrough data-command set
// so a script's redis.call side effects are observable end-to-end from
// a real client. Full command coverage, pipelining edge cases, and the
// RESP3 handshake are explicitly out of scope.
//
// Grounded on postkeys' internal/server/server.go: the accept-loop/
// per-connection-goroutine shape is carried over directly, narrowed
// from its full AUTH/pub-sub/MULTI-transaction command routing down to
// dispatch's small switch.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/iGentAI/ferrous/pkg/executor"
	"github.com/iGentAI/ferrous/pkg/storage"
)

// Server accepts RESP connections and dispatches each request to exec
// or storage.
type Server struct {
	addr    string
	exec    *executor.Executor
	storage storage.Engine
	log     *zap.SugaredLogger

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New builds a Server bound to addr. log may be nil (connection/command
// errors are then discarded).
func New(addr string, exec *executor.Executor, eng storage.Engine, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		addr:    addr,
		exec:    exec,
		storage: eng,
		log:     log,
		quit:    make(chan struct{}),
	}
}

// Start binds the listener and begins accepting connections in the
// background.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	s.log.Infow("server listening", "addr", s.addr)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight connections to
// finish their current request.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.log.Warnw("accept error", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		argv, err := readCommand(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debugw("read error", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		reply := s.dispatch(argv)
		if _, err := reply.WriteTo(conn); err != nil {
			s.log.Debugw("write error", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}
