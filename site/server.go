// Package main serves the working directory over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/f4ah6o/siteserve/internal/config"
	"github.com/f4ah6o/siteserve/internal/fileserver"
	"github.com/f4ah6o/siteserve/internal/server"
)

// Opts are the command-line options. Unset options leave the config file
// and built-in defaults in place.
type Opts struct {
	ConfigPath string   `short:"c" long:"config" description:"Path to a TOML or YAML config file"`
	Port       *int     `short:"p" long:"port" env:"SITESERVE_PORT" description:"Port to serve on (default 8000)"`
	Host       *string  `long:"host" env:"SITESERVE_HOST" description:"Interface to bind (default all)"`
	Dir        *string  `short:"d" long:"dir" env:"SITESERVE_DIR" description:"Directory to serve (default .)"`
	NoListing  bool     `long:"no-listing" description:"Disable directory listings"`
	LogLevel   LogLevel `short:"v" long:"verbosity" env:"SITESERVE_LOG_LEVEL" description:"Log level (debug, info, warn, error)"`
}

// LogLevel extends slog.Level for go-flags parsing.
type LogLevel struct {
	slog.Level
	set bool
}

var _ flags.Unmarshaler = (*LogLevel)(nil)

// UnmarshalFlag calls UnmarshalText for go-flags compatibility.
func (l *LogLevel) UnmarshalFlag(value string) error {
	if err := l.Level.UnmarshalText([]byte(value)); err != nil {
		return err
	}
	l.set = true
	return nil
}

func parseOpts(args []string) (*Opts, error) {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &opts, nil
}

// loadConfig resolves the configuration: defaults, then the config file,
// then options.
func loadConfig(opts *Opts) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return config.Config{}, err
		}
	}

	if opts.Port != nil {
		cfg.Port = *opts.Port
	}
	if opts.Host != nil {
		cfg.Host = *opts.Host
	}
	if opts.Dir != nil {
		cfg.Root = *opts.Dir
	}
	if opts.NoListing {
		cfg.Listing = false
	}
	if opts.LogLevel.set {
		cfg.LogLevel = opts.LogLevel.String()
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run serves until ctx is cancelled. Startup failures are returned.
func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	types, err := cfg.MIMETable()
	if err != nil {
		return err
	}

	root, err := os.OpenRoot(cfg.Root)
	if err != nil {
		return fmt.Errorf("failed to open document root: %w", err)
	}
	defer root.Close()

	handler := fileserver.New(root, types,
		fileserver.WithListing(cfg.Listing),
		fileserver.WithLogger(logger),
	)

	ln, err := server.Listen(cfg.Addr())
	if err != nil {
		return err
	}
	logger.Info("listening", "addr", ln.Addr().String(), "handler", handler.String())

	srv := server.New(fileserver.LogRequests(handler, logger),
		server.WithStdout(stdout),
		server.WithLogger(logger),
	)
	if err := srv.Serve(ctx, ln); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func main() {
	opts, err := parseOpts(os.Args[1:])
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		slog.Error(err.Error())
		stop()
		os.Exit(1)
	}
}
