// Package config reads the line-oriented key/value configuration files
// that parameterize a memory controller: topology, timing constants, and
// scheduling policy.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is a read-only key/value store populated once from a file and
// exposing typed accessors for the keys the core consumes.
type Config struct {
	values map[string]string
}

// Read parses the config file at path. Comment lines start with ';' or
// '#'; every other non-blank line is `key value`.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	return Parse(string(raw))
}

// Parse builds a Config from config file text. It is factored out of Read
// so tests can exercise the format without touching the filesystem.
func Parse(text string) (*Config, error) {
	var rewritten strings.Builder

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, value, ok := strings.Cut(trimmed, " ")
		if !ok {
			return nil, fmt.Errorf("malformed config line: %q", line)
		}

		rewritten.WriteString(strings.TrimSpace(key))
		rewritten.WriteByte('=')
		rewritten.WriteString(strings.TrimSpace(value))
		rewritten.WriteByte('\n')
	}

	values, err := godotenv.Parse(strings.NewReader(rewritten.String()))
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &Config{values: values}, nil
}

// KeyExists reports whether key was set in the config file.
func (c *Config) KeyExists(key string) bool {
	_, ok := c.values[key]
	return ok
}

// String returns the raw string value for key, or "" if absent.
func (c *Config) String(key string) string {
	return c.values[key]
}

// StringDefault returns the value for key, or def if absent.
func (c *Config) StringDefault(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value for key.
func (c *Config) Int(key string) (int, error) {
	v, ok := c.values[key]
	if !ok {
		return 0, fmt.Errorf("missing required config key %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config key %q: %w", key, err)
	}
	return n, nil
}

// IntDefault returns the integer value for key, or def if absent or
// unparsable.
func (c *Config) IntDefault(key string, def int) int {
	n, err := c.Int(key)
	if err != nil {
		return def
	}
	return n
}

// Uint64 returns the unsigned integer value for key, accepting either
// decimal or 0x-prefixed hexadecimal.
func (c *Config) Uint64(key string) (uint64, error) {
	v, ok := c.values[key]
	if !ok {
		return 0, fmt.Errorf("missing required config key %q", key)
	}
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("config key %q: %w", key, err)
	}
	return n, nil
}

// Uint64Default returns the unsigned integer value for key, or def if
// absent or unparsable.
func (c *Config) Uint64Default(key string, def uint64) uint64 {
	n, err := c.Uint64(key)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the boolean value for key ("true"/"false").
func (c *Config) Bool(key string) bool {
	return strings.EqualFold(c.values[key], "true")
}
