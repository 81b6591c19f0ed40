package smtptest

import (
	"bufio"
	"encoding/base64"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	srv := NewServer(cfg)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, srv *Server) *client {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *client) readLine() string {
	c.t.Helper()
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimRight(line, "\r\n")
}

// readReply reads a possibly multi-line reply and returns all its lines.
func (c *client) readReply() []string {
	c.t.Helper()
	var lines []string
	for {
		line := c.readLine()
		lines = append(lines, line)
		if len(line) < 4 || line[3] != '-' {
			return lines
		}
	}
}

func (c *client) send(cmd string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(cmd + "\r\n"))
	require.NoError(c.t, err)
}

func (c *client) cmd(cmd string) string {
	c.t.Helper()
	c.send(cmd)
	lines := c.readReply()
	return lines[len(lines)-1]
}

func TestServer_GreetingAndEHLO(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Hostname: "mail.test.com", Username: "user", Password: "pass"})
	c := dial(t, srv)

	greeting := c.readLine()
	assert.True(t, strings.HasPrefix(greeting, "220 "), greeting)
	assert.Contains(t, greeting, "mail.test.com")

	c.send("EHLO client.test.com")
	reply := strings.Join(c.readReply(), "\n")
	assert.Contains(t, reply, "AUTH PLAIN LOGIN")
	assert.Contains(t, reply, "SIZE")
	assert.NotContains(t, reply, "STARTTLS")
}

func TestServer_AuthHiddenUntilTLS(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Username: "user", Password: "pass", AuthRequiresTLS: true})
	c := dial(t, srv)
	c.readLine()

	c.send("EHLO client")
	assert.NotContains(t, strings.Join(c.readReply(), "\n"), "AUTH")

	plain := base64.StdEncoding.EncodeToString([]byte("\x00user\x00pass"))
	assert.True(t, strings.HasPrefix(c.cmd("AUTH PLAIN "+plain), "538"))
}

func TestServer_MailTransaction(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Username: "user", Password: "pass"})
	c := dial(t, srv)
	c.readLine()

	c.send("EHLO client")
	c.readReply()

	assert.True(t, strings.HasPrefix(c.cmd("MAIL FROM:<a@x.com>"), "530"), "MAIL before AUTH must be refused")

	plain := base64.StdEncoding.EncodeToString([]byte("\x00user\x00pass"))
	assert.True(t, strings.HasPrefix(c.cmd("AUTH PLAIN "+plain), "235"))
	assert.True(t, strings.HasPrefix(c.cmd("MAIL FROM:<a@x.com>"), "250"))
	assert.True(t, strings.HasPrefix(c.cmd("RCPT TO:<b@x.com>"), "250"))
	assert.True(t, strings.HasPrefix(c.cmd("DATA"), "354"))

	c.send("Subject: Hi\r\n\r\n..leading dot\r\nhello\r\n.")
	assert.True(t, strings.HasPrefix(c.readLine(), "250"))
	assert.Equal(t, "250 OK", c.cmd("NOOP"))
	assert.True(t, strings.HasPrefix(c.cmd("QUIT"), "221"))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a@x.com", msgs[0].From)
	assert.Equal(t, []string{"b@x.com"}, msgs[0].To)
	assert.Equal(t, "Subject: Hi\r\n\r\n.leading dot\r\nhello\r\n", string(msgs[0].Data))

	assert.Equal(t, []string{"EHLO", "MAIL", "AUTH PLAIN", "MAIL", "RCPT", "DATA", "NOOP", "QUIT"}, srv.Commands())
}

func TestServer_AuthLoginWithInitialResponse(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Username: "user", Password: "pass", AuthMechanisms: []string{"LOGIN"}})
	c := dial(t, srv)
	c.readLine()
	c.send("EHLO client")
	c.readReply()

	c.send("AUTH LOGIN " + base64.StdEncoding.EncodeToString([]byte("user")))
	assert.Equal(t, "334 UGFzc3dvcmQ6", c.readLine())
	c.send(base64.StdEncoding.EncodeToString([]byte("pass")))
	assert.True(t, strings.HasPrefix(c.readLine(), "235"))
}

func TestServer_AuthRejectsUnadvertisedMechanism(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Username: "user", Password: "pass", AuthMechanisms: []string{"LOGIN"}})
	c := dial(t, srv)
	c.readLine()
	c.send("EHLO client")
	c.readReply()

	plain := base64.StdEncoding.EncodeToString([]byte("\x00user\x00pass"))
	assert.True(t, strings.HasPrefix(c.cmd("AUTH PLAIN "+plain), "504"))
}

func TestServer_CustomNoopReply(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{NoopReply: "451 4.3.0 Try again later"})
	c := dial(t, srv)
	c.readLine()

	assert.Equal(t, "451 4.3.0 Try again later", c.cmd("NOOP"))
}

func TestServer_StateOrderEnforcement(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{})
	c := dial(t, srv)
	c.readLine()

	assert.True(t, strings.HasPrefix(c.cmd("MAIL FROM:<a@x.com>"), "503"))
	assert.True(t, strings.HasPrefix(c.cmd("EHLO"), "501"))
	c.send("EHLO client")
	c.readReply()
	assert.True(t, strings.HasPrefix(c.cmd("RCPT TO:<b@x.com>"), "503"))
	assert.True(t, strings.HasPrefix(c.cmd("DATA"), "503"))
	assert.True(t, strings.HasPrefix(c.cmd("STARTTLS"), "454"))
	assert.True(t, strings.HasPrefix(c.cmd("VRFY b@x.com"), "500"))
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line    string
		wantCmd string
		wantArg string
	}{
		{line: "EHLO client.example.com", wantCmd: "EHLO", wantArg: "client.example.com"},
		{line: "mail FROM:<a@x.com>", wantCmd: "MAIL", wantArg: "FROM:<a@x.com>"},
		{line: "QUIT", wantCmd: "QUIT", wantArg: ""},
	}

	for _, tt := range tests {
		cmd, arg := parseCommand(tt.line)
		assert.Equal(t, tt.wantCmd, cmd)
		assert.Equal(t, tt.wantArg, arg)
	}
}

func TestExtractAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a@x.com", extractAddress("<a@x.com>"))
	assert.Equal(t, "a@x.com", extractAddress(" <a@x.com> BODY=8BITMIME"))
	assert.Equal(t, "a@x.com", extractAddress("a@x.com SIZE=100"))
	assert.Equal(t, "", extractAddress("<broken"))
}

func TestAuthenticator(t *testing.T) {
	t.Parallel()

	auth := newAuthenticator("testuser", "testpass")
	assert.True(t, auth.enabled())
	assert.False(t, newAuthenticator("", "pass").enabled())

	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	assert.NoError(t, auth.verifyPlain(enc("\x00testuser\x00testpass")))
	assert.NoError(t, auth.verifyPlain(enc("admin\x00testuser\x00testpass")))
	assert.Error(t, auth.verifyPlain(enc("\x00testuser\x00wrong")))
	assert.Error(t, auth.verifyPlain(enc("no-separators")))
	assert.Error(t, auth.verifyPlain("%%%"))

	assert.NoError(t, auth.verifyLogin(enc("testuser"), enc("testpass")))
	assert.Error(t, auth.verifyLogin(enc("testuser"), enc("wrong")))
	assert.Error(t, auth.verifyLogin("%%%", enc("testpass")))
}
