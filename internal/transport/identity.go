package transport

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"npsrv/internal/errors"
)

// Identity is the peer's host name, IP address and service (port or
// socket path) as seen by the accept layer.
type Identity struct {
	Host    string
	IP      string
	Service string
}

// NewIdentity validates all three fields and returns the record.
// Either every field is usable or an *errors.IdentityError naming the
// first bad field is returned.
func NewIdentity(host, ip, service string) (Identity, error) {
	fields := []struct{ name, value string }{
		{"host", host},
		{"ip", ip},
		{"service", service},
	}
	for _, f := range fields {
		if err := checkField(f.name, f.value); err != nil {
			return Identity{}, err
		}
	}
	return Identity{Host: host, IP: ip, Service: service}, nil
}

func checkField(name, value string) error {
	switch {
	case value == "":
		return errors.InvalidIdentity(name, value, "empty")
	case strings.IndexByte(value, 0) >= 0:
		return errors.InvalidIdentity(name, value, "contains NUL byte")
	case !utf8.ValidString(value):
		return errors.InvalidIdentity(name, value, "not valid UTF-8")
	}
	return nil
}

// String formats the identity as "host (ip) service".
func (id Identity) String() string {
	return fmt.Sprintf("%s (%s) %s", id.Host, id.IP, id.Service)
}
