package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/shineum/mail-notifier/internal/message"
)

// State is a step of the client-side SMTP session.
type State int

// Session states, in the order a successful delivery passes through them.
// StateFailed can follow any of them.
const (
	StateDisconnected State = iota
	StateConnected
	StateGreeted
	StateTLSUpgraded
	StateAuthenticated
	StateSent
	StateClosed
	StateFailed
)

// statusOK is the only confirmation code accepted as delivered.
const statusOK = 250

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateGreeted:
		return "greeted"
	case StateTLSUpgraded:
		return "tls_upgraded"
	case StateAuthenticated:
		return "authenticated"
	case StateSent:
		return "sent"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session drives one delivery over one connection. It is not reused.
type session struct {
	cfg    Config
	logger *slog.Logger

	conn   net.Conn
	client *smtp.Client

	state   State
	history []State

	// authMechs holds the mechanisms advertised in the latest EHLO reply.
	authMechs []string

	// broken is set once the connection itself has failed, after which a
	// polite QUIT would only wait for the timeout.
	broken bool

	// closed is set once the connection has been released, on every path.
	closed bool
}

func newSession(cfg Config, logger *slog.Logger) *session {
	return &session{
		cfg:     cfg,
		logger:  logger,
		state:   StateDisconnected,
		history: []State{StateDisconnected},
	}
}

// deliver runs the whole state machine. The connection is closed on every
// path once it has been opened.
func (s *session) deliver(ctx context.Context, msg *message.Composed) error {
	if err := s.connect(ctx); err != nil {
		return s.fail(err)
	}
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	defer s.close()

	if err := s.greet(); err != nil {
		return s.fail(err)
	}

	if s.cfg.UseTLS {
		if err := s.startTLS(); err != nil {
			return s.fail(err)
		}
		s.regreet()
	}

	if err := s.authenticate(); err != nil {
		return s.fail(err)
	}

	if err := s.send(msg); err != nil {
		return s.fail(err)
	}

	return s.confirm(msg.EnvelopeTo)
}

func (s *session) connect(ctx context.Context) error {
	d := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		s.broken = true
		return fmt.Errorf("connect to %s: %w", s.cfg.Addr, err)
	}

	// go-smtp bounds each command itself; the deadline covers the greeting
	// banner read before the first command.
	if err := conn.SetDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		conn.Close()
		s.broken = true
		return fmt.Errorf("set deadline: %w", err)
	}

	s.conn = conn
	s.client = smtp.NewClient(conn)
	s.client.CommandTimeout = s.cfg.Timeout
	s.client.SubmissionTimeout = s.cfg.Timeout
	s.transition(StateConnected)
	return nil
}

func (s *session) greet() error {
	if err := s.client.Hello(s.cfg.HeloName); err != nil {
		return s.check(fmt.Errorf("EHLO: %w", err))
	}
	s.refreshCapabilities()
	s.transition(StateGreeted)
	return nil
}

func (s *session) startTLS() error {
	if ok, _ := s.client.Extension("STARTTLS"); !ok {
		return errors.New("STARTTLS: not advertised by server")
	}
	// StartTLS performs the handshake and sends EHLO again with the name
	// given to Hello, so a certificate failure surfaces here.
	if err := s.client.StartTLS(s.cfg.TLSConfig); err != nil {
		return s.check(fmt.Errorf("STARTTLS: %w", err))
	}
	s.transition(StateTLSUpgraded)
	return nil
}

// regreet reads the capabilities announced over the encrypted channel.
// Servers commonly advertise AUTH only after TLS.
func (s *session) regreet() {
	s.refreshCapabilities()
	s.transition(StateGreeted)
}

func (s *session) refreshCapabilities() {
	s.authMechs = nil
	if ok, params := s.client.Extension("AUTH"); ok {
		s.authMechs = strings.Fields(strings.ToUpper(params))
	}
}

func (s *session) authenticate() error {
	mech := s.mechanism()
	var auth sasl.Client
	switch mech {
	case sasl.Login:
		auth = sasl.NewLoginClient(s.cfg.Username, s.cfg.Password)
	default:
		auth = sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
	}

	if err := s.client.Auth(auth); err != nil {
		return s.check(fmt.Errorf("AUTH %s: %w", mech, err))
	}
	s.transition(StateAuthenticated)
	return nil
}

// mechanism picks the SASL mechanism: the configured one, else PLAIN unless
// the server only offers LOGIN.
func (s *session) mechanism() string {
	if s.cfg.AuthMechanism != "" {
		return s.cfg.AuthMechanism
	}
	if !slices.Contains(s.authMechs, sasl.Plain) && slices.Contains(s.authMechs, sasl.Login) {
		return sasl.Login
	}
	return sasl.Plain
}

func (s *session) send(msg *message.Composed) error {
	if err := s.client.Mail(msg.EnvelopeFrom, nil); err != nil {
		return s.check(fmt.Errorf("MAIL FROM: %w", err))
	}
	if err := s.client.Rcpt(msg.EnvelopeTo, nil); err != nil {
		return s.check(fmt.Errorf("RCPT TO: %w", err))
	}

	w, err := s.client.Data()
	if err != nil {
		return s.check(fmt.Errorf("DATA: %w", err))
	}
	if _, err := w.Write(msg.Raw); err != nil {
		w.Close()
		return s.check(fmt.Errorf("DATA write: %w", err))
	}
	if err := w.Close(); err != nil {
		return s.check(fmt.Errorf("DATA end: %w", err))
	}

	s.transition(StateSent)
	return nil
}

// confirm issues NOOP and accepts only 250. A transmitted message is not
// reported as delivered on any other reply, or on no reply at all.
func (s *session) confirm(recipient string) error {
	err := s.client.Noop()
	if err == nil {
		s.logger.Debug("delivery confirmed", "code", statusOK)
		return nil
	}

	notConfirmed := &DeliveryNotConfirmedError{Recipient: recipient}
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		notConfirmed.Code = smtpErr.Code
		notConfirmed.Response = smtpErr.Message
	} else {
		s.broken = true
		notConfirmed.Response = err.Error()
	}

	s.transition(StateFailed)
	return notConfirmed
}

// close ends the session with QUIT where the connection still works, then
// closes it regardless. Errors are only logged.
func (s *session) close() {
	if s.client == nil {
		return
	}
	if !s.broken {
		if err := s.client.Quit(); err != nil {
			s.logger.Debug("QUIT failed", "error", err)
		}
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("closing SMTP connection failed", "error", err)
	}
	s.closed = true
	// A failed session keeps StateFailed as its outcome; closed records the
	// release.
	if s.state != StateFailed {
		s.transition(StateClosed)
	}
}

// check marks the connection broken when err is not a protocol reply.
func (s *session) check(err error) error {
	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		s.broken = true
	}
	return err
}

// fail moves to StateFailed and collapses err into a TransportError.
func (s *session) fail(err error) error {
	s.logger.Debug("SMTP session failed", "state", s.state.String(), "error", err)
	s.transition(StateFailed)
	return &TransportError{Err: err}
}

func (s *session) transition(next State) {
	s.state = next
	s.history = append(s.history, next)
	s.logger.Debug("SMTP session state", "state", next.String())
}
