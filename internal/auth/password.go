package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"npsrv/internal/errors"
	"npsrv/internal/session"
)

// MaxLine bounds the "<user> <password>\n" handshake line.
const MaxLine = 512

// Handshake replies.
const (
	ReplyOK     = "OK\n"
	ReplyDenied = "DENIED\n"
)

// User is one entry of a credentials file.
type User struct {
	Name string `yaml:"name"`
	UID  uint32 `yaml:"uid"`
	Hash string `yaml:"hash"` // bcrypt
}

// Credentials maps user names to uids and password hashes.
type Credentials struct {
	Users []User `yaml:"users"`

	byName map[string]User
}

// LoadCredentials reads a YAML credentials file:
//
//	users:
//	  - name: alice
//	    uid: 1000
//	    hash: $2a$10$...
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var c Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if err := c.index(); err != nil {
		return nil, fmt.Errorf("credentials %s: %w", path, err)
	}
	return &c, nil
}

// NewCredentials builds Credentials from users.
func NewCredentials(users ...User) (*Credentials, error) {
	c := &Credentials{Users: users}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Credentials) index() error {
	c.byName = make(map[string]User, len(c.Users))
	for i, u := range c.Users {
		if u.Name == "" || strings.ContainsAny(u.Name, " \t\r\n") {
			return fmt.Errorf("user %d: invalid name %q", i, u.Name)
		}
		if _, err := bcrypt.Cost([]byte(u.Hash)); err != nil {
			return fmt.Errorf("user %q: %w", u.Name, err)
		}
		if _, dup := c.byName[u.Name]; dup {
			return fmt.Errorf("user %q listed twice", u.Name)
		}
		c.byName[u.Name] = u
	}
	return nil
}

// Lookup returns the entry for name.
func (c *Credentials) Lookup(name string) (User, bool) {
	u, ok := c.byName[name]
	return u, ok
}

// HashPassword returns the bcrypt hash of pw for a credentials file.
func HashPassword(pw []byte) (string, error) {
	h, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// dummyHash is compared against when a user name is unknown.  Its cost
// matches HashPassword.
var dummyHash = sync.OnceValue(func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("npsrv-unknown-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
})

// Password authenticates with a single line "<user> <password>\n" sent
// by the client before any protocol traffic.  The server answers
// ReplyOK or ReplyDenied.
type Password struct {
	Creds *Credentials
}

// Authenticate runs the handshake over sess.Trans.
func (p *Password) Authenticate(_ context.Context, sess *session.Session) error {
	line, err := readLine(sess.Trans, MaxLine)
	if err != nil {
		return fmt.Errorf("password: read: %w", err)
	}

	name, pw, _ := strings.Cut(line, " ")
	u, found := p.Creds.Lookup(name)
	hash := u.Hash
	if !found {
		// Unknown names cost one comparison, same as known ones.
		hash = dummyHash()
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) != nil || !found {
		sess.Trans.Write([]byte(ReplyDenied)) //nolint:errcheck
		return fmt.Errorf("password: user %q: %w", name, errors.ErrAuthFailed)
	}

	if err := sess.Trans.SetAuthUser(u.UID); err != nil {
		return err
	}
	sess.Logf("user %s (uid %d) authenticated", u.Name, u.UID)
	_, err = sess.Trans.Write([]byte(ReplyOK))
	return err
}

// readLine reads one byte at a time so nothing past the newline is
// consumed from r.
func readLine(r io.Reader, max int) (string, error) {
	var sb strings.Builder
	var b [1]byte
	for sb.Len() < max {
		n, err := r.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				return strings.TrimSuffix(sb.String(), "\r"), nil
			}
			sb.WriteByte(b[0])
			continue
		}
		if err != nil {
			if err == io.EOF {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
	}
	return "", fmt.Errorf("line longer than %d bytes", max)
}
