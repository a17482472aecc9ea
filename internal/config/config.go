// Package config loads server configuration from a YAML file layered
// under CLI flags: defaults, then a --config file, then explicit flags
// win.
package config

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is every knob the runnable binary in cmd/peribusd exposes.
type Config struct {
	// ListenAddr is the TCP address the main 9P service listens on.
	ListenAddr string `yaml:"listen_addr"`
	// DisplayListenAddr is the adjacent port for a second server
	// instance sharing the same namespace. Empty disables it.
	DisplayListenAddr string `yaml:"display_listen_addr"`

	// MaxMsize bounds the negotiable 9P2000 message size.
	MaxMsize uint32 `yaml:"max_msize"`

	// StreamBufferBytes is the default soft size bound for a stream
	// file's buffer; this is the default cmd/peribusd applies when
	// constructing one.
	StreamBufferBytes int `yaml:"stream_buffer_bytes"`
	// ShellStreamBufferBytes overrides StreamBufferBytes for a
	// long-lived shell session's scrollback.
	ShellStreamBufferBytes int `yaml:"shell_stream_buffer_bytes"`

	// QueueCapacity bounds a queue file's pending-item count.
	QueueCapacity int `yaml:"queue_capacity"`

	// Debounce is read from the file and the --debounce flag, but
	// cmd/peribusd does not pass it on: the PTY stdout-capture file
	// always uses its own fixed 300ms quiet window.
	Debounce time.Duration `yaml:"debounce"`

	// Shell is the command line used to spawn a terminal session's
	// PTY, e.g. ["/bin/sh"].
	Shell []string `yaml:"shell"`

	// LogLevel is a logrus level name ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration cmd/peribusd starts from before any
// file or flag is applied.
func Default() Config {
	return Config{
		ListenAddr:             ":5640",
		DisplayListenAddr:      ":5641",
		MaxMsize:               1 << 16,
		StreamBufferBytes:      1 << 20,
		ShellStreamBufferBytes: 8 << 20,
		QueueCapacity:          256,
		Debounce:               300 * time.Millisecond,
		Shell:                  []string{"/bin/sh"},
		LogLevel:               "info",
	}
}

// Load reads path (if non-empty) as YAML over Default(), layering the
// config file under its flag defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BindFlags registers the subset of Config that is also settable from
// the command line, backed by cobra's bundled pflag package. Flags
// that were actually set on the command line take precedence over the
// YAML file; cmd/peribusd's applyUnsetFlags applies that after cobra
// has parsed args.
func BindFlags(cmd *cobra.Command, cfg *Config) {
	cmd.PersistentFlags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "9P listen address")
	cmd.PersistentFlags().StringVar(&cfg.DisplayListenAddr, "display-listen", cfg.DisplayListenAddr, "display server listen address (empty disables it)")
	cmd.PersistentFlags().Uint32Var(&cfg.MaxMsize, "max-msize", cfg.MaxMsize, "maximum negotiable 9P2000 message size")
	cmd.PersistentFlags().DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "PTY stdout-capture quiet window (parsed, not applied: the PTY file uses a fixed 300ms)")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
}
