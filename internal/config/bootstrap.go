// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

//go:embed kgraph.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/kgraph/kgraph.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "kgraph", "kgraph.yaml"), nil
}

// Bootstrap writes the commented default config to path unless a file is
// already there. It returns true when it wrote the file.
func Bootstrap(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "creating config %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(DefaultConfigYAML); err != nil {
		return false, kgerr.Errorf(kgerr.CodeConfigLoadReadFailure, "writing config %s: %w", path, err)
	}

	slog.Info("created default config", "path", path)
	return true, nil
}
