// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

const scheme = "keyring://"

// Ref points at a secret in a Store.
type Ref struct {
	Service string
	Key     string
}

func (r Ref) String() string { return scheme + r.Service + "/" + r.Key }

// IsRef reports whether value uses the keyring:// scheme.
func IsRef(value string) bool { return strings.HasPrefix(value, scheme) }

// ParseRef splits keyring://service/key. The key may itself contain slashes.
func ParseRef(value string) (Ref, error) {
	if !IsRef(value) {
		return Ref{}, kgerr.Errorf(kgerr.CodeSecretInvalidInput, "not a keyring reference: %q", value)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(value, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, kgerr.Errorf(kgerr.CodeSecretInvalidInput,
			"invalid keyring reference %q: want keyring://service/key", value)
	}
	return Ref{Service: service, Key: key}, nil
}

// Resolve returns value unchanged unless it is a keyring reference, in
// which case it returns the referenced secret.
func Resolve(s Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := s.Get(ref.Service, ref.Key)
	if err != nil {
		return "", kgerr.Wrapf(err, kgerr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveViper replaces every keyring reference held by v with its secret.
// All unresolvable references are reported together.
func ResolveViper(v *viper.Viper, s Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !IsRef(val) {
			continue
		}
		secret, err := Resolve(s, val)
		if err != nil {
			errs = append(errs, kgerr.With(err, kgerr.Field("config_key", key)))
			continue
		}
		v.Set(key, secret)
	}
	return errors.Join(errs...)
}
