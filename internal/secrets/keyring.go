// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/zalando/go-keyring"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// indexKey names the entry listing every key of a service; the OS
// keyrings cannot enumerate entries themselves.
const indexKey = ".index"

// Keyring is a Store backed by the OS keyring (Keychain, Secret Service,
// Windows Credential Manager).
type Keyring struct{}

var _ Store = Keyring{}

func NewKeyring() Keyring { return Keyring{} }

func (Keyring) Get(service, key string) (string, error) {
	if err := checkName(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", kgerr.Errorf(kgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (k Keyring) Set(service, key, value string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "writing secret %s/%s", service, key)
	}
	keys, err := k.Keys(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return writeIndex(service, append(keys, key))
}

func (k Keyring) Delete(service, key string) error {
	if err := checkName(service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return kgerr.Errorf(kgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "deleting secret %s/%s", service, key)
	}
	keys, err := k.Keys(service)
	if err != nil {
		return err
	}
	return writeIndex(service, slices.DeleteFunc(keys, func(s string) bool { return s == key }))
}

func (Keyring) Keys(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "reading key index of %s", service)
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "decoding key index of %s", service)
	}
	slices.Sort(keys)
	return keys, nil
}

func writeIndex(service string, keys []string) error {
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "clearing key index of %s", service)
		}
		return nil
	}
	slices.Sort(keys)
	data, err := json.Marshal(keys)
	if err != nil {
		return kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "encoding key index of %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return kgerr.Wrapf(err, kgerr.CodeSecretKeyringFailure, "writing key index of %s", service)
	}
	return nil
}

func checkName(service, key string) error {
	switch {
	case service == "":
		return kgerr.New(kgerr.CodeSecretInvalidInput, "secret service must not be empty")
	case key == "" || key == indexKey:
		return kgerr.Errorf(kgerr.CodeSecretInvalidInput, "invalid secret key %q", key)
	}
	return nil
}
