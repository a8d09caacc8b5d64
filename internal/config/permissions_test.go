// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestWarnInsecurePermissions(t *testing.T) {
	tests := []struct {
		name string
		perm os.FileMode
		warn bool
	}{
		{"owner only 0600", 0o600, false},
		{"read only 0400", 0o400, false},
		{"group readable 0640", 0o640, true},
		{"other readable 0604", 0o604, true},
		{"world readable 0644", 0o644, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kgraph.yaml")
			require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: x.db\n"), 0o600))
			require.NoError(t, os.Chmod(path, tt.perm))

			logger, buf := captureLogger()
			got := WarnInsecurePermissions(logger, path)

			assert.Equal(t, tt.warn, got)
			if tt.warn {
				assert.Contains(t, buf.String(), "readable by other users")
				assert.Contains(t, buf.String(), path)
				assert.Contains(t, buf.String(), "0600")
			} else {
				assert.NotContains(t, buf.String(), "level=WARN")
			}
		})
	}
}

func TestWarnInsecurePermissions_NoFile(t *testing.T) {
	logger, buf := captureLogger()

	assert.False(t, WarnInsecurePermissions(logger, ""))
	assert.Empty(t, buf.String())

	assert.False(t, WarnInsecurePermissions(logger, "/nonexistent/kgraph.yaml"))
	assert.Contains(t, buf.String(), "could not stat")
	assert.NotContains(t, buf.String(), "level=WARN")
}
