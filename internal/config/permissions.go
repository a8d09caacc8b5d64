// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"io/fs"
	"log/slog"
	"os"
	"runtime"
)

// WarnInsecurePermissions logs a warning when the config file, which may
// carry an embedding API key, is readable by group or others.
func WarnInsecurePermissions(logger *slog.Logger, path string) bool {
	if path == "" || runtime.GOOS == "windows" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}

	const groupOrOtherRead fs.FileMode = 0o044
	if info.Mode().Perm()&groupOrOtherRead == 0 {
		return false
	}
	logger.Warn("config file is readable by other users; api keys may be exposed",
		"path", path,
		"mode", info.Mode().Perm(),
		"recommended", "0600",
	)
	return true
}
