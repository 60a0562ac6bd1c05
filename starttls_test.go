package danetls

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// The STARTTLS negotiations are tested against scripted peers over an
// in-memory pipe. The scripts speak just enough of each protocol to
// drive the client through the negotiation.
//

func scriptedPeer(t *testing.T, script func(conn net.Conn, r *bufio.Reader)) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go script(server, bufio.NewReader(server))
	return client
}

func TestDoSMTP(t *testing.T) {

	config := NewConfig("mail.example.com", 25)
	config.Appname = "smtp"

	conn := scriptedPeer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("220-mail.example.com ESMTP ready\r\n220 welcome\r\n"))
		r.ReadString('\n') // EHLO
		conn.Write([]byte("250-mail.example.com\r\n250-SIZE 35882577\r\n250 STARTTLS\r\n"))
		r.ReadString('\n') // STARTTLS
		conn.Write([]byte("220 Go ahead\r\n"))
	})

	transcript, err := startTLS(conn, config)
	require.NoError(t, err)
	assert.Contains(t, transcript, "send: STARTTLS")
	assert.Contains(t, transcript, "recv: 220 Go ahead")
}

func TestDoSMTPWithoutStartTLS(t *testing.T) {

	config := NewConfig("mail.example.com", 25)
	config.Appname = "smtp"

	conn := scriptedPeer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("220 mail.example.com ESMTP ready\r\n"))
		r.ReadString('\n') // EHLO
		conn.Write([]byte("250-mail.example.com\r\n250 SIZE 35882577\r\n"))
	})

	_, err := startTLS(conn, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS support not detected")
}

func TestDoSMTPBadGreeting(t *testing.T) {

	config := NewConfig("mail.example.com", 25)
	config.Appname = "smtp"

	conn := scriptedPeer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("554 no service for you\r\n"))
	})

	_, err := startTLS(conn, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP greeting")
}

func TestDoPOP3(t *testing.T) {

	config := NewConfig("pop.example.com", 110)
	config.Appname = "pop3"

	conn := scriptedPeer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("+OK POP3 server ready\r\n"))
		r.ReadString('\n') // STLS
		conn.Write([]byte("+OK begin TLS negotiation\r\n"))
	})

	transcript, err := startTLS(conn, config)
	require.NoError(t, err)
	assert.Contains(t, transcript, "send: STLS")
}

func TestDoPOP3Refused(t *testing.T) {

	config := NewConfig("pop.example.com", 110)
	config.Appname = "pop3"

	conn := scriptedPeer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("+OK POP3 server ready\r\n"))
		r.ReadString('\n')
		conn.Write([]byte("-ERR TLS not available\r\n"))
	})

	_, err := startTLS(conn, config)
	require.Error(t, err)
}

func TestDoIMAP(t *testing.T) {

	config := NewConfig("imap.example.com", 143)
	config.Appname = "imap"

	conn := scriptedPeer(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("* OK IMAP4rev1 server ready\r\n"))
		r.ReadString('\n') // . CAPABILITY
		conn.Write([]byte("* CAPABILITY IMAP4rev1 STARTTLS AUTH=PLAIN\r\n. OK done\r\n"))
		r.ReadString('\n') // . STARTTLS
		conn.Write([]byte(". OK begin TLS negotiation\r\n"))
	})

	transcript, err := startTLS(conn, config)
	require.NoError(t, err)
	assert.Contains(t, transcript, "send: . STARTTLS")
}

func TestDoXMPP(t *testing.T) {

	config := NewConfig("chat.example.com", 5222)
	config.Appname = "xmpp-client"
	config.Servicename = "example.com"

	conn := scriptedPeer(t, func(conn net.Conn, r *bufio.Reader) {
		buf := make([]byte, bufsize)
		conn.Read(buf) // stream header
		conn.Write([]byte("<stream:stream><stream:features>" +
			"<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>" +
			"</stream:features>"))
		conn.Read(buf) // starttls command
		conn.Write([]byte("<proceed xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>"))
	})

	transcript, err := startTLS(conn, config)
	require.NoError(t, err)
	assert.Contains(t, transcript, "to='example.com'",
		"the service name overrides the hostname in the stream header")
}

func TestStartTLSUnknownApplication(t *testing.T) {

	config := NewConfig("www.example.com", 443)
	config.Appname = "gopher"

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	_, err := startTLS(client, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown STARTTLS application")
}

func TestParseSMTPline(t *testing.T) {

	code, rest, done, err := parseSMTPline("250-STARTTLS")
	require.NoError(t, err)
	assert.Equal(t, 250, code)
	assert.Equal(t, "STARTTLS", rest)
	assert.False(t, done)

	code, _, done, err = parseSMTPline("220 Go ahead")
	require.NoError(t, err)
	assert.Equal(t, 220, code)
	assert.True(t, done)

	_, _, _, err = parseSMTPline("xx")
	assert.Error(t, err)

	_, _, _, err = parseSMTPline("abc d")
	assert.Error(t, err)
}
