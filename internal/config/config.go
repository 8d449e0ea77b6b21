// Package config handles cardcheck.toml tool configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/roach88/cardcheck/internal/macro"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "cardcheck.toml"

// Config is the contents of cardcheck.toml.
type Config struct {
	Preprocess Preprocess `toml:"preprocess"`
	Store      Store      `toml:"store"`
	Card       Card       `toml:"card"`
	Remote     Remote     `toml:"remote"`

	// Path is the file the configuration was read from; empty for defaults.
	Path string `toml:"-"`
}

// Preprocess configures the preprocess command.
type Preprocess struct {
	Token  string `toml:"token"`
	Header bool   `toml:"header"`
}

// Store configures the SQLite line index and transcript database.
type Store struct {
	Path string `toml:"path"`
}

// Card selects the card profile. Empty means the built-in profile.
type Card struct {
	Profile string `toml:"profile"`
}

// Remote configures the websocket transport.
type Remote struct {
	Listen string `toml:"listen"`
	URL    string `toml:"url"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Preprocess: Preprocess{Token: macro.DefaultToken, Header: true},
		Store:      Store{Path: "cardcheck.db"},
		Remote:     Remote{Listen: "127.0.0.1:7816", URL: "ws://127.0.0.1:7816/apdu"},
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults;
// any other read or parse failure is an error. Relative paths in the file are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse error in %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.Path = path

	if cfg.Preprocess.Token == "" {
		cfg.Preprocess.Token = macro.DefaultToken
	}
	dir := filepath.Dir(path)
	cfg.Store.Path = resolve(dir, cfg.Store.Path)
	cfg.Card.Profile = resolve(dir, cfg.Card.Profile)
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
