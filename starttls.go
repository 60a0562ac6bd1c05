package danetls

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const bufsize = 2048

//
// The STARTTLS negotiators speak just enough of each application
// protocol, in cleartext over an established connection, to determine
// whether TLS session establishment can proceed. They return before the
// handshake; the orchestrator continues on the same connection. Each
// returns a transcript of the exchange for diagnostics.
//

//
// doXMPP issues an XMPP stream header and STARTTLS command. See
// RFC 6120, Section 5.4.2 for details.
//
func doXMPP(conn net.Conn, config *Config) (string, error) {

	var line, transcript string

	buf := make([]byte, bufsize)
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	rolename := "client"
	if config.Appname == "xmpp-server" {
		rolename = "server"
	}

	// send initial stream header
	outstring := fmt.Sprintf(
		"<?xml version='1.0'?><stream:stream to='%s' "+
			"version='1.0' xml:lang='en' xmlns='jabber:%s' "+
			"xmlns:stream='http://etherx.jabber.org/streams'>",
		config.Service(), rolename)
	transcript += fmt.Sprintf("send: %s\n", outstring)
	writer.WriteString(outstring)
	writer.Flush()

	// read response stream header; look for STARTTLS feature support
	_, err := reader.Read(buf)
	if err != nil {
		return transcript, err
	}
	line = string(buf)
	transcript += fmt.Sprintf("recv: %s\n", line)
	if !strings.Contains(line, "<starttls") || !strings.Contains(line,
		"urn:ietf:params:xml:ns:xmpp-tls") {
		return transcript, fmt.Errorf("XMPP STARTTLS unavailable")
	}

	// issue STARTTLS command
	outstring = "<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>"
	transcript += fmt.Sprintf("send: %s\n", outstring)
	writer.WriteString(outstring + "\r\n")
	writer.Flush()

	// read response and look for proceed element
	_, err = reader.Read(buf)
	if err != nil {
		return transcript, err
	}
	line = string(buf)
	transcript += fmt.Sprintf("recv: %s\n", line)
	if !strings.Contains(line, "<proceed") {
		return transcript, fmt.Errorf("XMPP STARTTLS command failed")
	}

	return transcript, nil
}

//
// doPOP3 reads the POP3 greeting and sends the STLS command.
//
func doPOP3(conn net.Conn, config *Config) (string, error) {

	var transcript string

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// Read POP3 greeting
	line, err := reader.ReadString('\n')
	if err != nil {
		return transcript, err
	}
	transcript += fmt.Sprintf("recv: %s\n", strings.TrimRight(line, "\r\n"))

	// Send STLS command
	transcript += "send: STLS\n"
	writer.WriteString("STLS\r\n")
	writer.Flush()

	// Read STLS response, look for +OK
	line, err = reader.ReadString('\n')
	if err != nil {
		return transcript, err
	}
	line = strings.TrimRight(line, "\r\n")
	transcript += fmt.Sprintf("recv: %s\n", line)
	if !strings.HasPrefix(line, "+OK") {
		return transcript, fmt.Errorf("POP3 STARTTLS unavailable")
	}

	return transcript, nil
}

//
// doIMAP checks the IMAP capability list for STARTTLS support and
// issues the STARTTLS command.
//
func doIMAP(conn net.Conn, config *Config) (string, error) {

	var gotSTARTTLS bool
	var line, transcript string

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// Read IMAP greeting
	line, err := reader.ReadString('\n')
	if err != nil {
		return transcript, err
	}
	transcript += fmt.Sprintf("recv: %s\n", strings.TrimRight(line, "\r\n"))

	// Send Capability command, read response, looking for STARTTLS
	transcript += "send: . CAPABILITY\n"
	writer.WriteString(". CAPABILITY\r\n")
	writer.Flush()

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			return transcript, err
		}
		line = strings.TrimRight(line, "\r\n")
		transcript += fmt.Sprintf("recv: %s\n", line)
		if strings.HasPrefix(line, "* CAPABILITY") && strings.Contains(line, "STARTTLS") {
			gotSTARTTLS = true
		}
		if strings.HasPrefix(line, ". OK") {
			break
		}
	}

	if !gotSTARTTLS {
		return transcript, fmt.Errorf("IMAP STARTTLS capability unavailable")
	}

	// Send STARTTLS
	transcript += "send: . STARTTLS\n"
	writer.WriteString(". STARTTLS\r\n")
	writer.Flush()

	// Look for OK response
	line, err = reader.ReadString('\n')
	if err != nil {
		return transcript, err
	}
	line = strings.TrimRight(line, "\r\n")
	transcript += fmt.Sprintf("recv: %s\n", line)
	if !strings.HasPrefix(line, ". OK") {
		return transcript, fmt.Errorf("STARTTLS failed to negotiate")
	}

	return transcript, nil
}

//
// parseSMTPline parses an SMTP protocol line, and returns the
// replycode, command string, whether the response is done (for a
// multi-line response), and an error (on failure).
//
func parseSMTPline(line string) (int, string, bool, error) {

	if len(line) < 4 {
		return 0, "", false, fmt.Errorf("short SMTP reply: %s", line)
	}
	replycode, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", false, fmt.Errorf("invalid reply code: %s", line)
	}
	responseDone := line[3] != '-'
	rest := line[4:]
	return replycode, rest, responseDone, err
}

//
// doSMTP reads the (possibly multi-line) SMTP greeting, sends EHLO,
// checks for the STARTTLS extension, and issues the STARTTLS command.
//
func doSMTP(conn net.Conn, config *Config) (string, error) {

	var replycode int
	var line, rest, transcript string
	var responseDone, gotSTARTTLS bool
	var err error

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// Read possibly multi-line SMTP greeting
	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			return transcript, err
		}
		line = strings.TrimRight(line, "\r\n")
		transcript += fmt.Sprintf("recv: %s\n", line)
		replycode, _, responseDone, err = parseSMTPline(line)
		if err != nil {
			return transcript, err
		}
		if responseDone {
			break
		}
	}
	if replycode != 220 {
		return transcript, fmt.Errorf("invalid reply code (%d) in SMTP greeting", replycode)
	}

	// Send EHLO, read possibly multi-line response, look for STARTTLS
	transcript += "send: EHLO localhost\n"
	writer.WriteString("EHLO localhost\r\n")
	writer.Flush()

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			return transcript, err
		}
		line = strings.TrimRight(line, "\r\n")
		transcript += fmt.Sprintf("recv: %s\n", line)
		replycode, rest, responseDone, err = parseSMTPline(line)
		if err != nil {
			return transcript, err
		}
		if replycode != 250 {
			return transcript, fmt.Errorf("invalid reply code in EHLO response")
		}
		if strings.Contains(rest, "STARTTLS") {
			gotSTARTTLS = true
		}
		if responseDone {
			break
		}
	}

	if !gotSTARTTLS {
		return transcript, fmt.Errorf("SMTP STARTTLS support not detected")
	}

	// Send STARTTLS command and read success reply code
	transcript += "send: STARTTLS\n"
	writer.WriteString("STARTTLS\r\n")
	writer.Flush()

	line, err = reader.ReadString('\n')
	if err != nil {
		return transcript, err
	}
	line = strings.TrimRight(line, "\r\n")
	transcript += fmt.Sprintf("recv: %s\n", line)
	replycode, _, _, err = parseSMTPline(line)
	if err != nil {
		return transcript, err
	}
	if replycode != 220 {
		return transcript, fmt.Errorf("invalid reply code to STARTTLS command")
	}

	return transcript, nil
}

//
// startTLS performs the configured application's cleartext STARTTLS
// negotiation on the given connection. On success the connection is
// ready for the TLS handshake.
//
func startTLS(conn net.Conn, config *Config) (string, error) {

	switch config.Appname {
	case "smtp":
		return doSMTP(conn, config)
	case "imap":
		return doIMAP(conn, config)
	case "pop3":
		return doPOP3(conn, config)
	case "xmpp-client", "xmpp-server":
		return doXMPP(conn, config)
	default:
		return "", fmt.Errorf("unknown STARTTLS application: %s", config.Appname)
	}
}
