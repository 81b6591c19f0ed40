// Package smtptest provides a small in-process SMTP submission server for
// exercising SMTP clients: STARTTLS, AUTH PLAIN/LOGIN, a mail transaction,
// and a configurable reply to NOOP. It records every command it sees and
// every message it accepts.
package smtptest

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"
)

// shutdownTimeout is the maximum time to wait for in-flight connections
// during Close.
const shutdownTimeout = 5 * time.Second

// Config holds the behaviour of a test server.
type Config struct {
	// Hostname is the server hostname used in the greeting and EHLO replies.
	Hostname string

	// TLSConfig enables STARTTLS. If nil, STARTTLS is not advertised.
	TLSConfig *tls.Config

	// Username and Password enable AUTH when both are set.
	Username string
	Password string

	// AuthMechanisms lists advertised mechanisms. Defaults to PLAIN LOGIN.
	AuthMechanisms []string

	// AuthRequiresTLS hides AUTH until the connection is encrypted, as
	// submission servers usually do.
	AuthRequiresTLS bool

	// NoopReply is the full reply line sent for NOOP. Defaults to "250 OK".
	NoopReply string

	// DropOnNoop closes the connection instead of replying to NOOP.
	DropOnNoop bool

	// Logger receives debug output. Defaults to discarding.
	Logger *slog.Logger
}

// Message is a mail transaction accepted by the server.
type Message struct {
	From string
	To   []string
	Data []byte
}

// Server is an SMTP server that records what clients send it.
type Server struct {
	config   Config
	auth     *authenticator
	listener net.Listener
	cancel   context.CancelFunc

	// wg tracks in-flight session goroutines for shutdown.
	wg sync.WaitGroup

	mu       sync.Mutex
	commands []string
	messages []Message
}

// NewServer creates a new test Server with the given configuration.
func NewServer(cfg Config) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if len(cfg.AuthMechanisms) == 0 {
		cfg.AuthMechanisms = []string{"PLAIN", "LOGIN"}
	}
	if cfg.NoopReply == "" {
		cfg.NoopReply = "250 OK"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		config: cfg,
		auth:   newAuthenticator(cfg.Username, cfg.Password),
	}
}

// Start listens on a random loopback port and serves connections in the
// background until Close is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.listener = ln

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx, ln)
	}()
	return nil
}

func (s *Server) serve(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.config.Logger.Debug("accept error", "error", err)
				return
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newSession(conn, s).handle(ctx)
		}()
	}
}

// Close stops accepting connections and waits up to shutdownTimeout for
// in-flight sessions to finish.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		s.config.Logger.Warn("shutdown timeout reached")
	}
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Commands returns the commands received so far, in order. AUTH entries
// include the mechanism, e.g. "AUTH PLAIN".
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Messages returns the messages accepted so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *Server) record(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
}

func (s *Server) accept(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}
