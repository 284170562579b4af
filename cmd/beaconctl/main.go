// Command beaconctl signs in to a forum server and keeps the session in a local file, so
// later invocations and other processes sharing the file act as the same user.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nocson47/beaconofknowledge/internal/middleware"
	"github.com/nocson47/beaconofknowledge/internal/session"
)

const (
	defaultServer = "http://localhost:8080"
	passwordEnv   = "BEACON_PASSWORD"
)

var errNotLoggedIn = errors.New("not logged in")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: beaconctl [-server URL] [-session FILE] <login USERNAME|whoami|logout>")
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".beacon-session.yaml"
	}
	return filepath.Join(dir, "beacon", "session.yaml")
}

func run(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("beaconctl", flag.ContinueOnError)
	server := fs.String("server", defaultServer, "forum base URL")
	file := fs.String("session", defaultSessionFile(), "session file")
	verbose := fs.Bool("v", false, "log session warnings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage()
	}

	logger := slog.New(slog.DiscardHandler)
	if *verbose {
		logger = middleware.NewLogger("production")
	}
	store := session.NewStore(
		session.NewAPIClient(*server, nil),
		session.WithCredentialStore(session.NewFileCredentialStore(*file)),
		session.WithLogger(logger),
	)
	defer store.Close()

	switch strings.ToLower(fs.Arg(0)) {
	case "login":
		if fs.NArg() < 2 {
			return usage()
		}
		password := getenv(passwordEnv)
		if password == "" {
			return fmt.Errorf("set %s to the account password", passwordEnv)
		}
		sess, err := store.Establish(ctx, fs.Arg(1), password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Fprintf(out, "logged in as %s (%s)\n", sess.Identity.Username, sess.Identity.Role)
	case "whoami":
		if _, err := store.Restore(ctx); err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if store.Current() == nil {
			return errNotLoggedIn
		}
		sess, err := store.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("whoami: %w", err)
		}
		fmt.Fprintf(out, "%s id=%d role=%s source=%s\n", sess.Identity.Username, sess.Identity.ID, sess.Identity.Role, sess.Source)
		if sess.Degraded() {
			fmt.Fprintln(out, "server unreachable, identity read from the token")
		}
	case "logout":
		if _, err := store.Restore(ctx); err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		store.Clear(ctx)
		fmt.Fprintln(out, "logged out")
	default:
		return usage()
	}
	return nil
}
