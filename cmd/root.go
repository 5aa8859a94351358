// Package cmd wires up the CLI flags and dispatches to the serve core.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"npsrv/config"
	"npsrv/internal/auth"
	"npsrv/internal/core"
	"npsrv/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X npsrv/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Overridden in tests.
var (
	stdin  io.Reader = os.Stdin  //nolint:gochecknoglobals
	stdout io.Writer = os.Stdout //nolint:gochecknoglobals
)

// Execute parses args and runs the daemon.
func Execute(ctx context.Context, args []string) error {
	var flags struct {
		listen      []string
		exitLastUse bool
		noDNS       bool
		timeoutSec  int
		execute     string
		command     string
		auth        string
		credentials string
		verbose     int
		quiet       bool
	}
	fs := flag.NewFlagSet("npsrv", flag.ContinueOnError)

	// ── listening ────────────────────────────────────────────────
	fs.StringArrayVarP(&flags.listen, "listen", "l", nil, "Listen on host:port, tcp://host:port or unix:///path (repeatable)")
	fs.BoolVarP(&flags.exitLastUse, "exit-on-last-use", "E", false, "Exit once the last connection closes")
	fs.BoolVarP(&flags.noDNS, "no-dns", "n", false, "Numeric-only, no reverse DNS for peers")
	fs.IntVarP(&flags.timeoutSec, "timeout", "w", 0, "Per-connection timeout in seconds")

	// ── authentication ───────────────────────────────────────────
	fs.StringVarP(&flags.auth, "auth", "a", "", "Auth mode: none, peercred or password")
	fs.StringVar(&flags.credentials, "credentials", "", "YAML credentials file for --auth=password")

	// ── engine ───────────────────────────────────────────────────
	fs.StringVarP(&flags.execute, "exec", "e", "", "Execute program for each connection")
	fs.StringVarP(&flags.command, "command", "c", "", "Execute shell command for each connection")

	// ── output / misc ────────────────────────────────────────────
	fs.CountVarP(&flags.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&flags.quiet, "quiet", "q", false, "Only print errors")

	var configFile string
	var showVersion, showHelp, dryRun, hashPassword bool
	fs.StringVarP(&configFile, "config", "f", "", "YAML config file")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration, print it and exit")
	fs.BoolVar(&hashPassword, "hash-password", false, "Read a password and print its bcrypt hash")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	if showHelp || (len(args) == 0 && os.Getenv("NPSRV_LISTEN") == "") {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "npsrv %s\n", version)
		return nil
	}
	if hashPassword {
		return runHashPassword()
	}

	// ── defaults → file → env → flags ────────────────────────────
	cfg := config.Default()
	if configFile != "" {
		if err := config.LoadFile(cfg, configFile); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	if fs.Changed("listen") {
		cfg.Listen = flags.listen
	}
	if fs.Changed("exit-on-last-use") {
		cfg.ExitLastUse = flags.exitLastUse
	}
	if fs.Changed("no-dns") {
		cfg.NoDNS = flags.noDNS
	}
	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(flags.timeoutSec) * time.Second
	}
	if fs.Changed("auth") {
		cfg.Auth = flags.auth
	}
	if fs.Changed("credentials") {
		cfg.CredentialsFile = flags.credentials
	}
	if fs.Changed("exec") {
		cfg.Execute = flags.execute
	}
	if fs.Changed("command") {
		cfg.Command = flags.command
	}
	if fs.Changed("verbose") {
		cfg.Verbose += flags.verbose
	}
	if flags.quiet {
		cfg.Verbose = int(util.LogQuiet)
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}

	if dryRun {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, "# configuration OK\n", string(out))
		return nil
	}

	err = mode.Run(ctx)
	if sm, ok := mode.(*core.ServeMode); ok {
		logger.Verbose("metrics: %s", sm.Metrics.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// runHashPassword prints the bcrypt hash of a password read from the
// terminal without echo, or from the first line of piped stdin.
func runHashPassword() error {
	var pw []byte
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		pw = b
	} else {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read password: %w", err)
		}
		pw = []byte(strings.TrimRight(line, "\r\n"))
	}
	if len(pw) == 0 {
		return fmt.Errorf("empty password")
	}

	hash, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	return nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `npsrv – 9P connection server v%s

Accepts connections on TCP and unix-domain sockets, authenticates the
peer and hands the stream to a protocol engine.

Usage:
  npsrv -l <addr> [-l <addr> ...] [options]
  npsrv -f <config.yaml> [options]
  npsrv --hash-password

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  npsrv -l 0.0.0.0:564                          Echo on the 9P port
  npsrv -l unix:///run/npsrv.sock -a peercred   Unix socket, uid from kernel
  npsrv -l :5640 -E -e /usr/sbin/9pserve        One-shot: exit after last client
  npsrv --hash-password < pw.txt                Hash for a credentials file

Environment:
  NPSRV_LISTEN, NPSRV_EXIT_ON_LAST_USE, NPSRV_NO_DNS, NPSRV_TIMEOUT,
  NPSRV_AUTH, NPSRV_CREDENTIALS, NPSRV_EXEC, NPSRV_COMMAND, NPSRV_VERBOSE
`)
}
