package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"npsrv/util"
)

// capture redirects the command's stdout for the duration of a test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	out := capture(t)
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "npsrv ") {
		t.Errorf("output = %q", out.String())
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	t.Setenv("NPSRV_LISTEN", "")
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			err := Execute(context.Background(), args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates, prints the merged
// configuration and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	out := capture(t)
	err := Execute(context.Background(), []string{
		"-l", "127.0.0.1:5640", "-l", "unix:///tmp/npsrv.sock", "-E", "-w", "30", "--dry-run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"127.0.0.1:5640", "unix:///tmp/npsrv.sock", "exit_on_last_use: true", "timeout: 30s"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dry-run output missing %q:\n%s", want, out.String())
		}
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := [][]string{
		{"-l", "127.0.0.1:5640", "-a", "password", "--dry-run"}, // no credentials
		{"-l", "127.0.0.1:5640", "-a", "peercred", "--dry-run"}, // no unix listener
		{"-l", "127.0.0.1:70000", "--dry-run"},
	}
	for _, args := range tests {
		if err := Execute(context.Background(), args); err == nil {
			t.Errorf("%v: expected validation error", args)
		}
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	err := Execute(context.Background(), []string{"--nonexistent-flag"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestExecute_Positional verifies stray arguments are rejected.
func TestExecute_Positional(t *testing.T) {
	err := Execute(context.Background(), []string{"-l", ":564", "localhost"})
	if err == nil {
		t.Fatal("expected error for positional argument")
	}
}

// TestExecute_ConflictingFlags verifies -e and -c conflict is caught.
func TestExecute_ConflictingFlags(t *testing.T) {
	err := Execute(context.Background(), []string{
		"-l", ":564", "-e", "cat", "-c", "ls", "--dry-run",
	})
	if err == nil {
		t.Fatal("expected error for -e and -c conflict")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("error should mention mutually exclusive: %v", err)
	}
}

// TestExecute_Precedence verifies file < env < flags.
func TestExecute_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "npsrv.yaml")
	body := "listen: [\"127.0.0.1:1111\"]\ntimeout: 5s\nno_dns: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NPSRV_LISTEN", "127.0.0.1:2222")
	t.Setenv("NPSRV_TIMEOUT", "7")

	out := capture(t)
	err := Execute(context.Background(), []string{"-f", path, "-w", "9", "--dry-run"})
	if err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "127.0.0.1:2222") || strings.Contains(got, "1111") {
		t.Errorf("env should override file listen:\n%s", got)
	}
	if !strings.Contains(got, "timeout: 9s") {
		t.Errorf("flag should override env timeout:\n%s", got)
	}
	if !strings.Contains(got, "no_dns: true") {
		t.Errorf("file value should survive:\n%s", got)
	}
}

// TestExecute_HashPassword verifies piped input is hashed.
func TestExecute_HashPassword(t *testing.T) {
	out := capture(t)
	old := stdin
	stdin = strings.NewReader("hunter2\n")
	defer func() { stdin = old }()

	if err := Execute(context.Background(), []string{"--hash-password"}); err != nil {
		t.Fatal(err)
	}
	hash := strings.TrimSpace(out.String())
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")); err != nil {
		t.Errorf("hash %q does not match: %v", hash, err)
	}
}

// TestExecute_HashPasswordEmpty verifies an empty password is refused.
func TestExecute_HashPasswordEmpty(t *testing.T) {
	old := stdin
	stdin = strings.NewReader("\n")
	defer func() { stdin = old }()

	if err := Execute(context.Background(), []string{"--hash-password"}); err == nil {
		t.Fatal("expected error for empty password")
	}
}

// TestExecute_ExitOnLastUse runs the daemon on a unix socket and checks
// that it returns once its only client disconnects.
func TestExecute_ExitOnLastUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "npsrv.sock")

	errc := make(chan error, 1)
	go func() {
		errc <- Execute(context.Background(), []string{"-l", "unix://" + path, "-E"})
	}()

	var conn net.Conn
	var err error
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); {
		if conn, err = net.Dial("unix", path); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	conn.Write([]byte("ping")) //nolint:errcheck
	buf := make([]byte, 4)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if _, err := conn.Read(buf); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Execute: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not exit after last connection")
	}
}

// TestExecute_Verbosity verifies the default level and the -v/-q flags.
func TestExecute_Verbosity(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "verbose: 1"},
		{[]string{"-vv"}, "verbose: 3"},
		{[]string{"-q"}, "verbose: 0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.args), func(t *testing.T) {
			out := capture(t)
			args := append([]string{"-l", "127.0.0.1:5640", "--dry-run"}, tt.args...)
			if err := Execute(context.Background(), args); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out.String())
			}
		})
	}
}

// TestExecute_ExitOnLastUseTCP runs the daemon on a free loopback port.
func TestExecute_ExitOnLastUseTCP(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	addr := util.FormatAddr("127.0.0.1", port)

	errc := make(chan error, 1)
	go func() {
		errc <- Execute(context.Background(), []string{"-l", addr, "-E", "-n", "-q"})
	}()

	var conn net.Conn
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); {
		if conn, err = net.Dial("tcp", addr); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Execute: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not exit after last connection")
	}
}
