// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/kgraph/internal/secrets"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // service/key -> value
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[secrets.DefaultService+"/"+k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Get(service, key string) (string, error) {
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", kgerr.Errorf(kgerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Set(service, key, value string) error {
	m.data[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.data[service+"/"+key]; !ok {
		return kgerr.Errorf(kgerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, service+"/"+key)
	return nil
}

func (m *mockSecretStore) Keys(service string) ([]string, error) {
	var keys []string
	for k := range m.data {
		if name, ok := strings.CutPrefix(k, service+"/"); ok {
			keys = append(keys, name)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func useSecrets(t *testing.T, s secrets.Store) {
	t.Helper()
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return s }
	t.Cleanup(func() { secretStoreFactory = orig })
}

func TestSecretList(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{name: "empty store", want: "No secrets stored.\n"},
		{name: "single key", keys: []string{"openai"}, want: "openai\n"},
		{name: "sorted", keys: []string{"openai", "google"}, want: "google\nopenai\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			useSecrets(t, newMockSecretStore(tt.keys...))

			out, err := env.run(t, "secret", "list")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSecretSet(t *testing.T) {
	env := newTestEnv(t)
	mock := newMockSecretStore()
	useSecrets(t, mock)

	out, err := env.run(t, "secret", "set", "openai", "sk-arg")
	require.NoError(t, err)
	assert.Contains(t, out, "keyring://kgraph/openai")
	assert.Equal(t, "sk-arg", mock.data["kgraph/openai"])

	root := NewRootCmd()
	root.SetIn(strings.NewReader("sk-stdin\n"))
	root.SetOut(new(strings.Builder))
	root.SetArgs([]string{"--config", env.config, "secret", "set", "google"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "sk-stdin", mock.data["kgraph/google"])

	root = NewRootCmd()
	root.SetIn(strings.NewReader(""))
	root.SetOut(new(strings.Builder))
	root.SetArgs([]string{"--config", env.config, "secret", "set", "empty"})
	err = root.Execute()
	require.Error(t, err)
	assert.Equal(t, kgerr.CodeCLIInputInvalid, kgerr.CodeOf(err))
}

func TestSecretDelete(t *testing.T) {
	env := newTestEnv(t)
	mock := newMockSecretStore("openai")
	useSecrets(t, mock)

	out, err := env.run(t, "secret", "delete", "openai")
	require.NoError(t, err)
	assert.Equal(t, "Deleted secret: openai\n", out)
	assert.Empty(t, mock.data)

	_, err = env.run(t, "secret", "delete", "openai")
	require.Error(t, err)
	assert.True(t, kgerr.HasCode(err, kgerr.CodeSecretNotFound))
	assert.Contains(t, err.Error(), `"openai"`)
}

func TestConfigResolvesKeyringReference(t *testing.T) {
	env := newTestEnv(t)
	useSecrets(t, newMockSecretStore())
	t.Setenv("KGRAPH_EMBEDDING_PROVIDER", "openai")
	t.Setenv("KGRAPH_EMBEDDING_API_KEY", "keyring://kgraph/openai")

	_, err := env.run(t, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyring://kgraph/openai")

	useSecrets(t, newMockSecretStore("openai"))
	_, err = env.run(t, "stats")
	require.NoError(t, err)
}
