//go:build !linux

package auth

import (
	"net"

	"npsrv/internal/errors"
)

func peerUID(*net.UnixConn) (uint32, error) {
	return 0, errors.ErrUnsupported
}
