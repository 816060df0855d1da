package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/rackhost/internal/app"
	"github.com/mattjoyce/rackhost/internal/asset"
	"github.com/mattjoyce/rackhost/internal/config"
	"github.com/mattjoyce/rackhost/internal/lock"
)

const (
	appName = "Rack"
	version = "0.1.0"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `rack - modular synthesis host

Usage:
  rack [flags] [patch.vcv]

Flags:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rack", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	devMode := fs.Bool("d", false, "Development mode: use the working directory and log DEBUG to stderr")
	systemDir := fs.String("s", "", "System directory (bundled plugins and resources)")
	userDir := fs.String("u", "", "User directory (settings, autosave, log, plugins)")
	showVersion := fs.Bool("version", false, "Print version and exit")
	// Unknown or malformed flags are reported and skipped, never fatal.
	for {
		err := fs.Parse(args)
		if err == nil {
			break
		}
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout, fs)
			return 0
		}
		fmt.Fprintf(stderr, "Ignoring flag: %v\n", err)
		args = fs.Args()
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "Ignoring extra arguments: %v\n", fs.Args()[1:])
	}
	if *showVersion {
		fmt.Fprintf(stdout, "rack version %s\n", version)
		return 0
	}
	patchPath := fs.Arg(0)

	dirs, err := asset.Resolve(*devMode, *systemDir, *userDir)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to resolve directories: %v\n", err)
		return 1
	}

	instance, err := lock.Acquire(lock.PathFor(dirs.User))
	if err != nil {
		fmt.Fprintf(stderr, "Failed to acquire instance lock (another instance may be running): %v\n", err)
		return 1
	}
	defer instance.Release()

	cfg, err := config.Load(dirs.Config())
	if err != nil {
		fmt.Fprintf(stderr, "Ignoring config, using defaults: %v\n", err)
		cfg = config.Defaults()
	}

	host, err := app.New(app.Options{
		AppName: appName,
		Version: version,
		DevMode: *devMode,
		Dirs:    dirs,
		Config:  cfg,
		In:      stdin,
		Out:     stdout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to start host: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := host.Run(ctx, patchPath); err != nil {
		fmt.Fprintf(stderr, "Startup failed: %v\n", err)
		return 1
	}
	return 0
}
