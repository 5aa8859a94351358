package util

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Peer identity strings reported for unix-domain connections, which
// carry no host or IP of their own.
const (
	UnixHost = "localhost"
	UnixIP   = "unix"
)

// PeerIdentity returns the host name, IP address and service string for
// the remote end of conn.  With noDNS, or when reverse lookup fails, the
// host is the numeric IP.  For unix-domain sockets the service is the
// socket path.
func PeerIdentity(ctx context.Context, conn net.Conn, noDNS bool) (host, ip, service string, err error) {
	switch addr := conn.RemoteAddr().(type) {
	case *net.TCPAddr:
		ip = addr.IP.String()
		service = strconv.Itoa(addr.Port)
		host = ReverseLookup(ctx, ip, noDNS)
		return host, ip, service, nil
	case *net.UnixAddr:
		service = addr.Name
		if service == "" || service == "@" {
			service = conn.LocalAddr().String()
		}
		return UnixHost, UnixIP, service, nil
	case nil:
		if local, ok := conn.LocalAddr().(*net.UnixAddr); ok {
			return UnixHost, UnixIP, local.Name, nil
		}
		return "", "", "", fmt.Errorf("connection has no remote address")
	default:
		h, p, splitErr := net.SplitHostPort(addr.String())
		if splitErr != nil {
			return "", "", "", fmt.Errorf("parse remote address %q: %w", addr.String(), splitErr)
		}
		return ReverseLookup(ctx, h, noDNS), h, p, nil
	}
}

// ReverseLookup returns the first name ip resolves to, without the
// trailing dot, or ip itself when noDNS is set or nothing resolves.
func ReverseLookup(ctx context.Context, ip string, noDNS bool) string {
	if noDNS {
		return ip
	}
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ip
	}
	return strings.TrimSuffix(names[0], ".")
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
