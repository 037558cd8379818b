// Package config loads disarm's settings from a YAML file and the
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"disarm/disasm"
)

const (
	configDir  = "disarm"
	configFile = "config.yml"
)

// Environment variables that override the config file.
const (
	EnvMode    = "DISARM_MODE"
	EnvNoColor = "DISARM_NO_COLOR"
	EnvWorkers = "DISARM_WORKERS"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config defines every option that can be set through the config file.
type Config struct {
	// Mode is used when the input does not imply an architecture.
	Mode disasm.Mode `yaml:"mode" json:"mode" jsonschema:"title=Mode,type=string,enum=arm32,enum=arm64,default=arm64,description=Architecture used when the input does not imply one"`
	// Address of the first decoded byte.
	Address Address `yaml:"address" json:"address" jsonschema:"title=Address,type=string,description=Address of the first decoded instruction (decimal or 0x-prefixed hex)"`
	// Count limits how many instructions are decoded; 0 decodes everything.
	Count int `yaml:"count" json:"count" jsonschema:"title=Count,minimum=0,description=Maximum number of instructions to decode (0 means all)"`
	// Color enables syntax highlighting on terminals.
	Color bool `yaml:"color" json:"color" jsonschema:"title=Color,default=true,description=Highlight listings when writing to a terminal"`
	// Format is text or json.
	Format string `yaml:"format" json:"format" jsonschema:"title=Format,enum=text,enum=json,default=text,description=Listing output format"`
	// Detail prints operands, registers and groups under each instruction.
	Detail bool `yaml:"detail" json:"detail" jsonschema:"title=Detail,description=Print per-instruction detail"`
	// Symbols annotates ELF listings with symbol names.
	Symbols bool `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,default=true,description=Annotate ELF listings with symbol names"`

	Workers    int `yaml:"workers" json:"workers" jsonschema:"title=Workers,minimum=1,default=8,description=Goroutines used by the stress command"`
	Iterations int `yaml:"iterations" json:"iterations" jsonschema:"title=Iterations,minimum=1,default=100,description=Decodes per stress worker"`

	LogLevel string `yaml:"logLevel,omitempty" json:"logLevel,omitempty" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,description=Log level used when DISARM_LOG_LEVEL is unset"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Mode:       disasm.ModeARM64,
		Color:      true,
		Format:     FormatText,
		Symbols:    true,
		Workers:    8,
		Iterations: 100,
	}
}

// Path returns the location of the user's config file,
// $XDG_CONFIG_HOME/disarm/config.yml on Linux.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configDir, configFile), nil
}

// Load reads the config file at path over the defaults and then applies the
// environment. An empty path means Path(); a missing default file is not an
// error, a missing explicit one is.
func Load(path string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvMode); ok && v != "" {
		m, err := disasm.ParseMode(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMode, err)
		}
		c.Mode = m
	}
	if v, ok := os.LookupEnv(EnvNoColor); ok && v != "" && v != "0" {
		c.Color = false
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate rejects values no command can work with.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid mode %s", c.Mode)
	}
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}
	if c.Format != FormatText && c.Format != FormatJSON {
		return fmt.Errorf("unknown format %q (want text or json)", c.Format)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", c.Iterations)
	}
	return nil
}

// Save writes c to path as YAML, creating the directory if needed.
func Save(path string, c *Config) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, out, 0o600)
}

// Address is a code address that reads and prints as hex. It satisfies
// pflag.Value so it can back a command-line flag directly.
type Address uint64

// ParseAddress accepts decimal, 0x-prefixed hex and underscores.
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return Address(v), nil
}

func (a Address) String() string { return fmt.Sprintf("%#x", uint64(a)) }

// Set implements pflag.Value.
func (a *Address) Set(s string) error {
	v, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Type implements pflag.Value.
func (*Address) Type() string { return "address" }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error { return a.Set(string(text)) }
