// Package ftp implements an FTP transport: a control connection on port 21
// issuing USER/PASS/PASV/PORT/LIST/RETR/STOR/TYPE/QUIT commands terminated
// by \r\n, with a response parser that extracts the 3-digit reply code and
// handles multi-line ("nnn-...") continuations.
//
// No FTP client exists anywhere in the example corpus, so the control-
// connection/reply-parsing state machine below is hand-rolled directly from
// RFC 959's wire description rather than ported from a reference
// implementation; the surrounding error taxonomy and io patterns still
// follow this repo's conventions (errs package, bufio.Reader line parsing).
package ftp

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"netstack/internal/errs"
)

// ReplyClass buckets a 3-digit FTP reply code by its leading digit.
type ReplyClass int

const (
	ReplyPreliminary ReplyClass = 1 // 1xx
	ReplyComplete    ReplyClass = 2 // 2xx
	ReplyIntermediate ReplyClass = 3 // 3xx
	ReplyTransientError ReplyClass = 4 // 4xx
	ReplyPermanentError ReplyClass = 5 // 5xx
)

// Reply is one parsed FTP server response, possibly spanning multiple lines.
type Reply struct {
	Code    int
	Lines   []string
}

// Class classifies r.Code's leading digit.
func (r Reply) Class() ReplyClass {
	return ReplyClass(r.Code / 100)
}

// Mode selects passive or active data-connection negotiation.
type Mode int

const (
	ModePassive Mode = iota
	ModeActive
)

// Client is a single FTP control connection.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
	mode Mode
}

// Dial opens the control connection to addr ("host:21") and reads the
// server's greeting.
func Dial(addr string, timeout time.Duration) (*Client, Reply, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, Reply{}, errs.ConnectionFailed("ftp control connection failed", err)
	}
	c := &Client{conn: conn, r: bufio.NewReader(conn), mode: ModePassive}
	reply, err := c.readReply()
	if err != nil {
		conn.Close()
		return nil, Reply{}, err
	}
	return c, reply, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// SetMode records the passive/active data-connection mode. List, Retr and
// Stor do not consult it: they always negotiate a passive connection with
// PASV, and active-mode transfers are not implemented (Port only sends the
// PORT command).
func (c *Client) SetMode(m Mode) { c.mode = m }

func (c *Client) sendCommand(cmd string) error {
	_, err := c.conn.Write([]byte(cmd + "\r\n"))
	if err != nil {
		return errs.IO("failed to write ftp command", err)
	}
	return nil
}

// readReply reads one FTP response, including all continuation lines: the
// first line is "nnn-text" when continued, "nnn text" (or "nnn" alone)
// when it is the final line; continuation lines repeat until a line
// starts with the same code followed by a space.
func (c *Client) readReply() (Reply, error) {
	line, err := c.readLine()
	if err != nil {
		return Reply{}, err
	}

	code, rest, ok := splitReplyLine(line)
	if !ok {
		return Reply{}, errs.Protocol("ftp", fmt.Sprintf("malformed reply line %q", line))
	}

	reply := Reply{Code: code, Lines: []string{rest}}
	if len(line) >= 4 && line[3] == '-' {
		prefix := strconv.Itoa(code) + " "
		for {
			next, err := c.readLine()
			if err != nil {
				return Reply{}, err
			}
			reply.Lines = append(reply.Lines, next)
			if strings.HasPrefix(next, prefix) {
				break
			}
		}
	}
	return reply, nil
}

func (c *Client) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", errs.IO("failed to read ftp reply", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// splitReplyLine extracts the 3-digit code and trailing text from a reply
// line, accepting both "nnn " and "nnn-" separators.
func splitReplyLine(line string) (code int, rest string, ok bool) {
	if len(line) < 3 {
		return 0, "", false
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", false
	}
	if len(line) > 3 {
		return code, line[4:], true
	}
	return code, "", true
}

// command sends cmd and waits for the single (possibly multi-line) reply.
func (c *Client) command(cmd string) (Reply, error) {
	if err := c.sendCommand(cmd); err != nil {
		return Reply{}, err
	}
	return c.readReply()
}

func (c *Client) User(username string) (Reply, error) { return c.command("USER " + username) }
func (c *Client) Pass(password string) (Reply, error) { return c.command("PASS " + password) }
func (c *Client) Type(code string) (Reply, error)     { return c.command("TYPE " + code) }
func (c *Client) Quit() (Reply, error)                { return c.command("QUIT") }

// Pasv issues PASV and parses the "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)"
// reply into a dial address for the data connection.
func (c *Client) Pasv() (string, Reply, error) {
	reply, err := c.command("PASV")
	if err != nil {
		return "", Reply{}, err
	}
	if reply.Class() != ReplyComplete {
		return "", reply, errs.Protocol("ftp", "PASV failed: "+strings.Join(reply.Lines, " "))
	}
	addr, err := parsePasvAddress(strings.Join(reply.Lines, " "))
	if err != nil {
		return "", reply, err
	}
	return addr, reply, nil
}

func parsePasvAddress(text string) (string, error) {
	start := strings.IndexByte(text, '(')
	end := strings.IndexByte(text, ')')
	if start < 0 || end < 0 || end < start {
		return "", errs.Protocol("ftp", "malformed PASV reply: "+text)
	}
	parts := strings.Split(text[start+1:end], ",")
	if len(parts) != 6 {
		return "", errs.Protocol("ftp", "malformed PASV address: "+text)
	}
	p1, err1 := strconv.Atoi(parts[4])
	p2, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil {
		return "", errs.Protocol("ftp", "malformed PASV port: "+text)
	}
	port := p1*256 + p2
	host := strings.Join(parts[:4], ".")
	return fmt.Sprintf("%s:%d", host, port), nil
}

// Port issues PORT, advertising addr ("host:port") as where the server
// should connect for the next data transfer (active mode).
func (c *Client) Port(addr string) (Reply, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Reply{}, errs.Protocol("ftp", "invalid PORT address: "+addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Reply{}, errs.Protocol("ftp", "invalid PORT port: "+portStr)
	}
	octets := strings.ReplaceAll(host, ".", ",")
	return c.command(fmt.Sprintf("PORT %s,%d,%d", octets, port/256, port%256))
}

// List issues LIST, dials the negotiated data connection, and returns its
// full contents. Only passive mode is supported for List/Retr/Store.
func (c *Client) List(path string) ([]byte, Reply, error) {
	return c.dataTransfer("LIST " + path)
}

// Retr downloads path over a fresh data connection.
func (c *Client) Retr(path string) ([]byte, Reply, error) {
	return c.dataTransfer("RETR " + path)
}

func (c *Client) dataTransfer(cmd string) ([]byte, Reply, error) {
	addr, _, err := c.Pasv()
	if err != nil {
		return nil, Reply{}, err
	}

	dataConn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return nil, Reply{}, errs.ConnectionFailed("ftp data connection failed", err)
	}
	defer dataConn.Close()

	if err := c.sendCommand(cmd); err != nil {
		return nil, Reply{}, err
	}
	startReply, err := c.readReply()
	if err != nil {
		return nil, Reply{}, err
	}
	if startReply.Class() != ReplyPreliminary && startReply.Class() != ReplyComplete {
		return nil, startReply, errs.Protocol("ftp", cmd+" rejected: "+strings.Join(startReply.Lines, " "))
	}

	var buf []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := dataConn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}

	finalReply, err := c.readReply()
	if err != nil {
		return buf, Reply{}, err
	}
	return buf, finalReply, nil
}

// Stor uploads data to path over a fresh data connection.
func (c *Client) Stor(path string, data []byte) (Reply, error) {
	addr, _, err := c.Pasv()
	if err != nil {
		return Reply{}, err
	}

	dataConn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return Reply{}, errs.ConnectionFailed("ftp data connection failed", err)
	}
	defer dataConn.Close()

	if err := c.sendCommand("STOR " + path); err != nil {
		return Reply{}, err
	}
	startReply, err := c.readReply()
	if err != nil {
		return Reply{}, err
	}
	if startReply.Class() != ReplyPreliminary && startReply.Class() != ReplyComplete {
		return startReply, errs.Protocol("ftp", "STOR rejected: "+strings.Join(startReply.Lines, " "))
	}

	if _, err := dataConn.Write(data); err != nil {
		return Reply{}, errs.IO("failed to write ftp data", err)
	}
	dataConn.Close()

	return c.readReply()
}
