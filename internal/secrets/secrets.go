// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps credentials such as embedding API keys out of
// config files. A config value of the form keyring://service/key is
// replaced by the secret stored under that service and key.
package secrets

// DefaultService is the keyring service kgraph stores its own secrets under.
const DefaultService = "kgraph"

// Store holds secrets grouped by service.
type Store interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	// Delete fails with CodeSecretNotFound for absent keys.
	Delete(service, key string) error
	// Keys lists the key names stored under service, sorted.
	Keys(service string) ([]string, error)
}
