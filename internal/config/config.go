// Package config builds a Configuration from, in order of precedence,
// command-line flags, an optional TOML file, and built-in defaults.
package config

import (
	"encoding/hex"
	"flag"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Mode selects a chunking strategy.
type Mode string

const (
	ModeFixed    Mode = "FIXED"
	ModeSentinel Mode = "SENTINEL"
)

// Configuration is the immutable record a session is fixed at start with.
type Configuration struct {
	Mode      Mode
	BlockSize int
	Delimiter byte
	Window    int
	Port      int
	Name      string
}

// fileConfig is the TOML-decoded shape; its fields are all optional so that
// a file may override only what it cares about.
type fileConfig struct {
	Mode         string `toml:"mode"`
	BlockSize    int    `toml:"block_size"`
	DelimiterHex string `toml:"delimiter_hex"`
	Window       int    `toml:"window"`
	Port         int    `toml:"port"`
	Name         string `toml:"name"`
}

// Defaults matches spec.md §3: window=5, port=8000, delimiter=0x00.
func Defaults() Configuration {
	return Configuration{
		Mode:      ModeFixed,
		BlockSize: 4096,
		Delimiter: 0x00,
		Window:    5,
		Port:      8000,
		Name:      "sentinelnav",
	}
}

var (
	modeFlag         = flag.String("mode", "", "chunking mode, \"FIXED\" or \"SENTINEL\"")
	blockSizeFlag    = flag.Int("blocksize", 0, "chunk size in FIXED mode, max chunk size in SENTINEL mode")
	delimiterHexFlag = flag.String("delimiter", "", "SENTINEL delimiter byte, as a two-digit hex string (default \"00\")")
	windowFlag       = flag.Int("window", 0, "size of the sliding entropy window")
	portFlag         = flag.Int("port", 0, "loopback port to serve on")
	nameFlag         = flag.String("name", "", "short display name for this session")
	tomlFlag         = flag.String("config", "", "path to an optional TOML configuration file")
)

// Load builds a Configuration starting from Defaults, then applies the
// optional TOML file named by -config, then command-line flags, so a flag
// overrides the file and the file overrides a default.
// parseFlags controls whether flag.Parse is invoked here; callers that
// already parsed flags (e.g. tests) pass false.
func Load(parseFlags bool, log *logrus.Logger) (Configuration, error) {
	if parseFlags && !flag.Parsed() {
		flag.Parse()
	}

	cfg := Defaults()

	if *tomlFlag != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(*tomlFlag, &fc); err != nil {
			return Configuration{}, errors.Wrapf(err, "config: decode %q", *tomlFlag)
		}
		applyFile(&cfg, fc)
	}

	if err := applyFlags(&cfg); err != nil {
		return Configuration{}, err
	}

	if cfg.BlockSize < 256 {
		log.WithField("block_size", cfg.BlockSize).Warn("block size below 256 bytes incurs massive per-chunk overhead")
	}
	return cfg, nil
}

func applyFile(cfg *Configuration, fc fileConfig) {
	if fc.Mode != "" {
		cfg.Mode = Mode(fc.Mode)
	}
	if fc.BlockSize != 0 {
		cfg.BlockSize = fc.BlockSize
	}
	if fc.DelimiterHex != "" {
		if b, err := parseDelimiterHex(fc.DelimiterHex); err == nil {
			cfg.Delimiter = b
		}
	}
	if fc.Window != 0 {
		cfg.Window = fc.Window
	}
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.Name != "" {
		cfg.Name = fc.Name
	}
}

func applyFlags(cfg *Configuration) error {
	if *modeFlag != "" {
		cfg.Mode = Mode(*modeFlag)
	}
	if *blockSizeFlag != 0 {
		cfg.BlockSize = *blockSizeFlag
	}
	if *delimiterHexFlag != "" {
		b, err := parseDelimiterHex(*delimiterHexFlag)
		if err != nil {
			return err
		}
		cfg.Delimiter = b
	}
	if *windowFlag != 0 {
		cfg.Window = *windowFlag
	}
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}
	if *nameFlag != "" {
		cfg.Name = *nameFlag
	}

	if cfg.Mode != ModeFixed && cfg.Mode != ModeSentinel {
		return errors.Errorf("config: mode must be %q or %q, got %q", ModeFixed, ModeSentinel, cfg.Mode)
	}
	if cfg.BlockSize <= 0 {
		return errors.Errorf("config: block_size must be positive, got %d", cfg.BlockSize)
	}
	if cfg.Window <= 0 {
		return errors.Errorf("config: window must be positive, got %d", cfg.Window)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.Errorf("config: port must be in 1..65535, got %d", cfg.Port)
	}
	return nil
}

func parseDelimiterHex(s string) (byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 1 {
		return 0, errors.Errorf("config: delimiter_hex must be exactly one byte in hex, got %q", s)
	}
	return b[0], nil
}
