// Command otpctl signs in against the API and keeps the session in a local
// SQLite file, the way a browser keeps it in local storage.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"otp_auth/internal/client"
	"otp_auth/internal/guard"
	"otp_auth/internal/model"
	"otp_auth/internal/session"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server    string
	storePath string
	register  model.RegisterRequest
}

var errUsage = errors.New("usage: otpctl [flags] register|request-otp|login|refresh|logout|whoami|route ...")

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("otpctl", pflag.ContinueOnError)
	flagSet.StringVar(&opts.server, "server", envOr("OTPCTL_SERVER", "http://localhost:8080"), "API base URL")
	flagSet.StringVar(&opts.storePath, "store", envOr("OTPCTL_STORE", "otpctl.db"), "session store file")
	flagSet.StringVar(&opts.register.Email, "email", "", "email for register")
	flagSet.StringVar(&opts.register.Phone, "phone", "", "phone for register")
	flagSet.StringVar(&opts.register.FirstName, "first-name", "", "first name for register")
	flagSet.StringVar(&opts.register.LastName, "last-name", "", "last name for register")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		return errUsage
	}
	cmd, rest := rest[0], rest[1:]

	api := client.New(opts.server)

	switch cmd {
	case "register":
		data, err := api.Register(ctx, opts.register)
		if err != nil {
			return err
		}
		return printJSON(stdout, data)
	case "request-otp":
		if len(rest) != 1 {
			return errors.New("usage: otpctl request-otp <email|phone>")
		}
		res, err := api.RequestOTP(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, res)
	}

	store, err := session.OpenSQLiteStore(opts.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := session.NewManager(api, store)
	manager.Hydrate(ctx)

	switch cmd {
	case "login":
		if len(rest) != 2 {
			return errors.New("usage: otpctl login <email|phone> <code>")
		}
		s, err := manager.SignIn(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		if s == nil {
			return errors.New("code accepted but the user record could not be loaded")
		}
		return printSession(stdout, s)
	case "refresh":
		if manager.Current() == nil {
			return errors.New("not signed in")
		}
		s := manager.Refresh(ctx)
		if s == nil {
			return errors.New("refresh failed, cached session kept")
		}
		return printSession(stdout, s)
	case "logout":
		return manager.Logout(ctx)
	case "whoami":
		s := manager.Current()
		if s == nil {
			fmt.Fprintln(stdout, "not signed in")
			return nil
		}
		return printSession(stdout, s)
	case "route":
		if len(rest) != 1 {
			return errors.New("usage: otpctl route <path>")
		}
		g := guard.New(manager, rest[0])
		defer g.Close()
		d := g.Decision()
		if d.Redirect != "" {
			fmt.Fprintf(stdout, "redirect %s -> %s\n", d.Path, d.Redirect)
			return nil
		}
		fmt.Fprintf(stdout, "allow %s\n", d.Path)
		return nil
	}
	return errUsage
}

func printSession(w io.Writer, s *session.Session) error {
	return printJSON(w, map[string]any{
		"user":        s.Record,
		"provisional": s.Provisional,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
