// Command ntlm-login performs a login request against an NTLM protected
// endpoint and prints the normalized result as JSON.
//
// Password can be provided via:
//   - -pass flag (least secure, visible in process list)
//   - NTLM_PASSWORD environment variable (recommended)
//   - stdin prompt (if neither flag nor env var is set)
//
// Usage:
//
//	ntlm-login -url <url> -user <DOMAIN\user> [-header 'Name: value'] [-body '{"a":1}']
//
// Exit codes: 0 success, 1 other failure, 2 invalid username or password,
// 3 no internet connection.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/term"

	ntlmlog "github.com/smnsjas/go-ntlmlogin/internal/log"
	"github.com/smnsjas/go-ntlmlogin/login"
	"github.com/smnsjas/go-ntlmlogin/value"
)

const (
	exitOther              = 1
	exitInvalidCredentials = 2
	exitNoConnectivity     = 3
)

// headerFlags collects repeated -header flags.
type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (h headerFlags) Set(s string) error {
	name, val, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q must be 'Name: value'", s)
	}
	h[strings.TrimSpace(name)] = strings.TrimSpace(val)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	headers := headerFlags{}

	rawURL := flag.String("url", "", "Login endpoint URL")
	username := flag.String("user", "", `Username (user, DOMAIN\user or user@domain)`)
	password := flag.String("pass", "", "Password (use NTLM_PASSWORD env var instead)")
	body := flag.String("body", "", "JSON request body")
	bodyFile := flag.String("body-file", "", "Read the JSON request body from a file ('-' for stdin)")
	flag.Var(headers, "header", "Extra request header 'Name: value' (repeatable)")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")
	enableCBT := flag.Bool("cbt", false, "Enable Channel Binding Tokens (CBT) for NTLM (Extended Protection)")
	workstation := flag.String("workstation", "", "NTLM workstation name")
	timeout := flag.Duration("timeout", 30*time.Second, "Connect, read and write timeout")
	maxRedirects := flag.Int("max-redirects", 10, "Redirects to follow")
	logLevel := flag.String("loglevel", "", "Log level: debug, info, warn, error (empty = no logging)")
	logFile := flag.String("logfile", "", "Write logs to this file instead of stderr")
	logSize := flag.Int64("logsize", 10<<20, "Rotate the log file after this many bytes")
	logBackups := flag.Int("logbackups", 3, "Rotated log files to keep")
	flag.Parse()

	if *rawURL == "" || *username == "" {
		flag.Usage()
		return exitOther
	}

	cfg := login.DefaultConfig()
	cfg.ConnectTimeout = *timeout
	cfg.ReadTimeout = *timeout
	cfg.WriteTimeout = *timeout
	cfg.MaxRedirects = *maxRedirects
	cfg.InsecureSkipVerify = *insecure
	cfg.ChannelBinding = *enableCBT
	cfg.Workstation = *workstation

	logger, closeLog, err := newLogger(*logLevel, *logFile, *logSize, *logBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitOther
	}
	defer closeLog()
	cfg.Logger = logger

	payload, err := readBody(*body, *bodyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitOther
	}

	pass := getPassword(*password)
	if pass == "" {
		fmt.Fprintln(os.Stderr, "Error: password is required (use -pass, NTLM_PASSWORD env, or stdin)")
		return exitOther
	}

	client, err := login.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitOther
	}

	resp, err := client.Login(*rawURL, *username, pass, headers, payload).Get()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		return exitOther
	}
	fmt.Println(string(out))
	return 0
}

// exitCode maps a login failure to the process exit code.
func exitCode(err error) int {
	switch login.Classify(err) {
	case login.FailureInvalidCredentials:
		return exitInvalidCredentials
	case login.FailureNoConnectivity:
		return exitNoConnectivity
	default:
		return exitOther
	}
}

// readBody parses the request body from the flag or the file.
func readBody(inline, path string) (value.Value, error) {
	if inline != "" && path != "" {
		return value.Value{}, errors.New("use either -body or -body-file")
	}

	text := []byte(inline)
	if path != "" {
		var err error
		if path == "-" {
			text, err = io.ReadAll(os.Stdin)
		} else {
			text, err = os.ReadFile(path)
		}
		if err != nil {
			return value.Value{}, fmt.Errorf("read body: %w", err)
		}
	}
	if strings.TrimSpace(string(text)) == "" {
		return value.Null(), nil
	}
	v, err := value.Parse(text)
	if err != nil {
		return value.Value{}, fmt.Errorf("parse body: %w", err)
	}
	return v, nil
}

// newLogger builds the redacting logger. An empty level discards logs.
func newLogger(level, file string, maxSize int64, backups int) (*slog.Logger, func(), error) {
	if level == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}

	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level '%s'. Valid values: debug, info, warn, error", level)
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if file != "" {
		rf, err := ntlmlog.NewRotatingFile(file, maxSize, backups)
		if err != nil {
			return nil, nil, err
		}
		w = rf
		closeFn = func() { _ = rf.Close() }
	}

	h := ntlmlog.NewRedactingHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	return slog.New(h), closeFn, nil
}

// getPassword returns password from flag, env var, or prompts for it.
func getPassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPass := os.Getenv("NTLM_PASSWORD"); envPass != "" {
		return envPass
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Use os.Stdin.Fd() cast to int for cross-platform compatibility
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		passBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return string(passBytes)
	}

	// Not a terminal (piped input): read line
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}
