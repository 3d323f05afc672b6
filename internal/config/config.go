// Package config holds the server configuration and loads it from TOML or
// YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/f4ah6o/siteserve/internal/mimetab"
)

// DefaultPort is the port served on when nothing else is configured.
const DefaultPort = 8000

// Config is the complete server configuration.
type Config struct {
	// Host is the interface to bind. Empty means all interfaces.
	Host string `toml:"host" yaml:"host"`
	// Port is the TCP port to listen on. Zero picks a free port.
	Port int `toml:"port" yaml:"port"`
	// Root is the document root. Relative paths are resolved against the
	// working directory.
	Root string `toml:"root" yaml:"root"`
	// Listing enables directory listings for directories without an index.
	Listing bool `toml:"listing" yaml:"listing"`
	// Types adds or overrides extension to Content-Type entries. The empty
	// key sets the fallback type.
	Types map[string]string `toml:"types" yaml:"types"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// Default returns the built-in configuration: port 8000 on all
// interfaces, serving the working directory with listings enabled.
func Default() Config {
	return Config{
		Port:     DefaultPort,
		Root:     ".",
		Listing:  true,
		LogLevel: "info",
	}
}

// ErrUnknownFormat is returned by Load for files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("unknown config file format")

// Load reads the file at path over the defaults. The format is chosen by
// extension: .toml, .yaml or .yml.
func Load(path string) (Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("failed to parse %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// MIMETable builds the extension table from the defaults and Types.
func (c Config) MIMETable() (mimetab.Table, error) {
	return mimetab.New(c.Types)
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.Port < 0 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port %d out of range 0-65535", c.Port))
	}

	if c.Root == "" {
		result = multierror.Append(result, errors.New("root must not be empty"))
	} else if info, err := os.Stat(c.Root); err != nil {
		result = multierror.Append(result, fmt.Errorf("root: %w", err))
	} else if !info.IsDir() {
		result = multierror.Append(result, fmt.Errorf("root %s is not a directory", c.Root))
	}

	if _, err := c.Level(); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := c.MIMETable(); err != nil {
		result = multierror.Append(result, fmt.Errorf("types: %w", err))
	}

	return result.ErrorOrNil()
}
