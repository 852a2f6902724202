package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"sirherobrine23.com.br/go-bds/go-armexec"
)

// DefaultPath is read when neither --config nor ARMEXEC_CONFIG name a file.
const DefaultPath = "/etc/armexec.yaml"

// Config holds armexec settings from a YAML file.
type Config struct {
	// Emulator is the absolute path of the user-mode emulator.
	Emulator string `yaml:"emulator"`
	// Digest is the emulator's sha256, bare hex or "sha256:<hex>".
	Digest string `yaml:"digest"`
	// Strip is the environment variable removed from wrapped children.
	Strip string `yaml:"strip"`
	// Debug turns on the execve trace.
	Debug bool `yaml:"debug"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Emulator: armexec.EmulatorPath,
		Digest:   armexec.EmulatorDigest,
		Strip:    armexec.PreloadVar,
	}
}

// Load reads path, or ARMEXEC_CONFIG, or DefaultPath, and applies
// environment overrides. Only DefaultPath may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv("ARMEXEC_CONFIG")
	}
	if path == "" {
		path, explicit = DefaultPath, false
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if v := os.Getenv("ARMEXEC_EMULATOR"); v != "" {
		cfg.Emulator = v
	}
	if v, ok := os.LookupEnv("ARMEXEC_EMULATOR_DIGEST"); ok {
		cfg.Digest = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if !filepath.IsAbs(cfg.Emulator) {
		return fmt.Errorf("emulator path %q must be absolute", cfg.Emulator)
	}
	digest, err := armexec.ParseDigest(cfg.Digest)
	if err != nil {
		return err
	}
	cfg.Digest = digest
	if cfg.Strip == "" {
		cfg.Strip = armexec.PreloadVar
	}
	return nil
}

// Binfmt returns the ARM target description using this emulator.
func (cfg *Config) Binfmt() armexec.Binfmt {
	b := armexec.ARM32()
	b.Emulator = cfg.Emulator
	b.Digest = cfg.Digest
	return b
}

// Gate returns a gate delegating to the native primitive.
func (cfg *Config) Gate() *armexec.Gate {
	g := armexec.NewGate(cfg.Binfmt())
	g.Strip = cfg.Strip
	return g
}
