// SOCKS5 client per RFC 1928 (protocol) and RFC 1929 (username/password
// auth). No SOCKS5 library exists anywhere in the example corpus, so this
// is a from-scratch implementation rather than a port.
package proxyconfig

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"netstack/internal/errs"
)

const (
	socksVersion5         = 0x05
	socksAuthNone         = 0x00
	socksAuthUserPass     = 0x02
	socksAuthNoAcceptable = 0xFF

	socksCmdConnect = 0x01

	socksAddrIPv4   = 0x01
	socksAddrDomain = 0x03
	socksAddrIPv6   = 0x04

	socksAuthVersion1 = 0x01
)

func connectSocks5(ctx context.Context, dialer *net.Dialer, cfg Config, targetHost string, targetPort int) (net.Conn, error) {
	proxyAddr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, errs.Proxy("failed to dial SOCKS5 proxy", err)
	}

	if err := socks5Handshake(conn, cfg.Auth); err != nil {
		conn.Close()
		return nil, err
	}
	if err := socks5Connect(conn, targetHost, targetPort); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func socks5Handshake(conn net.Conn, auth *Auth) error {
	methods := []byte{socksAuthNone}
	if auth != nil {
		methods = []byte{socksAuthUserPass}
	}

	greeting := append([]byte{socksVersion5, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return errs.Proxy("failed to write SOCKS5 greeting", err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return errs.Proxy("failed to read SOCKS5 method selection", err)
	}
	if resp[0] != socksVersion5 {
		return errs.Proxy(fmt.Sprintf("unexpected SOCKS version %d", resp[0]), nil)
	}
	switch resp[1] {
	case socksAuthNoAcceptable:
		return errs.Proxy("SOCKS5 proxy accepted no offered auth method", nil)
	case socksAuthNone:
		return nil
	case socksAuthUserPass:
		return socks5Authenticate(conn, auth)
	default:
		return errs.Proxy("unsupported SOCKS5 auth method", nil)
	}
}

func socks5Authenticate(conn net.Conn, auth *Auth) error {
	if auth == nil {
		return errs.Proxy("SOCKS5 proxy requires username/password auth but none configured", nil)
	}
	if len(auth.Username) > 255 || len(auth.Password) > 255 {
		return errs.Proxy("SOCKS5 username/password must each be at most 255 bytes", nil)
	}

	req := []byte{socksAuthVersion1}
	req = append(req, byte(len(auth.Username)))
	req = append(req, auth.Username...)
	req = append(req, byte(len(auth.Password)))
	req = append(req, auth.Password...)
	if _, err := conn.Write(req); err != nil {
		return errs.Proxy("failed to write SOCKS5 auth request", err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return errs.Proxy("failed to read SOCKS5 auth response", err)
	}
	if resp[1] != 0x00 {
		return errs.Proxy("SOCKS5 authentication failed", nil)
	}
	return nil
}

func socks5Connect(conn net.Conn, targetHost string, targetPort int) error {
	req := []byte{socksVersion5, socksCmdConnect, 0x00}

	if ip := net.ParseIP(targetHost); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			req = append(req, socksAddrIPv4)
			req = append(req, ip4...)
		} else {
			req = append(req, socksAddrIPv6)
			req = append(req, ip.To16()...)
		}
	} else {
		if len(targetHost) > 255 {
			return errs.Proxy("SOCKS5 domain name must be at most 255 bytes", nil)
		}
		req = append(req, socksAddrDomain, byte(len(targetHost)))
		req = append(req, targetHost...)
	}
	req = append(req, byte(targetPort>>8), byte(targetPort))

	if _, err := conn.Write(req); err != nil {
		return errs.Proxy("failed to write SOCKS5 connect request", err)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return errs.Proxy("failed to read SOCKS5 connect response", err)
	}
	if header[0] != socksVersion5 {
		return errs.Proxy(fmt.Sprintf("unexpected SOCKS version %d in connect reply", header[0]), nil)
	}
	if header[1] != 0x00 {
		return errs.Proxy(fmt.Sprintf("SOCKS5 connect failed with reply code %d", header[1]), nil)
	}

	var addrLen int
	switch header[3] {
	case socksAddrIPv4:
		addrLen = 4
	case socksAddrIPv6:
		addrLen = 16
	case socksAddrDomain:
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenByte); err != nil {
			return errs.Proxy("failed to read SOCKS5 bound domain length", err)
		}
		addrLen = int(lenByte[0])
	default:
		return errs.Proxy("unknown SOCKS5 bound address type", nil)
	}

	// bound address + port (2 bytes), discarded: we only need the tunnel.
	discard := make([]byte, addrLen+2)
	if _, err := io.ReadFull(conn, discard); err != nil {
		return errs.Proxy("failed to read SOCKS5 bound address", err)
	}
	return nil
}
