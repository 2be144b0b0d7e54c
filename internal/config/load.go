package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileNames are the configuration file names FindFile looks for, in order.
var FileNames = []string{"bundle.config.yaml", "bundle.config.yml", "bundle.config.json"}

// Load decodes a YAML or JSON configuration document. An empty document
// yields a zero RawConfig so every default applies.
func Load(r io.Reader) (RawConfig, error) {
	var raw RawConfig

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return RawConfig{}, nil
		}
		if errors.Is(err, ErrSchema) {
			return RawConfig{}, err
		}
		return RawConfig{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	return raw, nil
}

// LoadFile reads and decodes the configuration file at path.
func LoadFile(path string) (RawConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawConfig{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	raw, err := Load(f)
	if err != nil {
		return RawConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// FindFile returns the first configuration file in dir matching FileNames.
func FindFile(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no configuration file found in %s: %w", dir, fs.ErrNotExist)
}

// Overrides are command line values applied on top of the file before resolution.
type Overrides struct {
	Host   string
	Port   int
	Open   *bool
	OutDir string
}

// Apply returns a copy of raw with the non-empty overrides set.
func (o Overrides) Apply(raw RawConfig) RawConfig {
	if o.Host != "" || o.Port != 0 || o.Open != nil {
		server := RawServer{}
		if raw.Server != nil {
			server = *raw.Server
		}
		if o.Host != "" {
			host := o.Host
			server.Host = &host
		}
		if o.Port != 0 {
			port := o.Port
			server.Port = &port
		}
		if o.Open != nil {
			open := *o.Open
			server.Open = &open
		}
		raw.Server = &server
	}

	if o.OutDir != "" {
		raw.Build.OutDir = o.OutDir
	}

	return raw
}
