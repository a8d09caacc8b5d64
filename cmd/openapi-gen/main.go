// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/kgraph/internal/server"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

func main() {
	outPath := "api/openapi/kgraph.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	spec, err := generateSpec(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// specGraph satisfies server.Graph for route registration. Handlers are
// never invoked while the document is generated.
type specGraph struct {
	server.Graph
}

// generateSpec renders the OpenAPI document huma derives from the route
// types, as YAML when outPath ends in .yaml or .yml and JSON otherwise.
func generateSpec(outPath string) ([]byte, error) {
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		BackupDir:  os.TempDir(),
	}, specGraph{})
	if err != nil {
		return nil, kgerr.Errorf(kgerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	spec, err := json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
	if err != nil {
		return nil, kgerr.Errorf(kgerr.CodeCLISetupFailure, "encoding OpenAPI document: %w", err)
	}
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".yaml", ".yml":
		// JSON is valid YAML, so the JSON document decodes directly.
		var doc any
		if err := yaml.Unmarshal(spec, &doc); err != nil {
			return nil, kgerr.Errorf(kgerr.CodeCLISetupFailure, "converting OpenAPI document: %w", err)
		}
		return yaml.Marshal(doc)
	default:
		return spec, nil
	}
}
