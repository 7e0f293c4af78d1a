// Package main is the command-line client for the community platform.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"chub/internal/apiclient"
	"chub/internal/app"
	"chub/internal/config"
)

var version = "dev"

// loadConfig is replaced in tests.
var loadConfig = config.LoadConfig

type command struct {
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"login":    {"login -email E -password P", cmdLogin},
	"register": {"register -username U -email E -password P", cmdRegister},
	"logout":   {"logout", cmdLogout},
	"whoami":   {"whoami", cmdWhoami},
	"feed":     {"feed [-page N] [-limit N]", cmdFeed},
	"post":     {"post get|mine|user|create|update|delete|like|unlike|save|unsave ...", cmdPost},
	"saved":    {"saved", cmdSaved},
	"comments": {"comments list|add|reply|edit|delete|like|unlike ...", cmdComments},
	"prayers":  {"prayers random|submit ...", cmdPrayers},
	"upload":   {"upload <file>", cmdUpload},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chub", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("o", "text", "output format: text, json or yaml")
	apiURL := fs.String("api", "", "backend base URL (overrides API_URL)")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", name)
		usage(stderr)
		return 2
	}

	out, err := newPrinter(*format, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}

	a, err := app.New(ctx, cfg, app.Options{Toasts: stderr, Logs: stderr, Version: version})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer func() { _ = a.Close(context.Background()) }()

	e := &env{app: a, out: out, stderr: stderr}
	if err := cmd.run(ctx, e, fs.Args()[1:]); err != nil {
		var u usageError
		switch {
		case errors.As(err, &u):
			fmt.Fprintf(stderr, "%s\nUsage: chub %s\n", u.msg, cmd.usage)
			return 2
		case errors.As(err, new(reported)):
			// already shown as a notification
		default:
			fmt.Fprintf(stderr, "Error: %s\n", apiclient.UserMessage(err, err.Error()))
		}
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: chub [-o text|json|yaml] [-api URL] <command> [args]")
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", commands[n].usage)
	}
}
