package vos

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// VEnv is a string keyed environment handed to commands.
type VEnv interface {
	// Unsetenv unsets a single environment variable.
	Unsetenv(key string) error

	// Setenv sets the value of the environment variable named by the key.
	// Keys must be non-empty and may not hold '=' or NUL.
	Setenv(key, value string) error

	// LookupEnv retrieves the value of the environment variable named by the
	// key and reports whether it was present.
	LookupEnv(key string) (string, bool)

	// Getenv is like LookupEnv but returns "" for missing variables.
	Getenv(key string) string

	// ExpandEnv replaces ${var} or $var in the string with values from the
	// environment.
	ExpandEnv(s string) string

	// Environ returns a sorted copy of the environment in key=value form.
	Environ() []string
}

// CopyEnv sets every key=value entry of environ in dst. An entry without '='
// sets an empty value.
func CopyEnv(dst VEnv, environ []string) error {
	for _, entry := range environ {
		key, value, _ := strings.Cut(entry, "=")
		if err := dst.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

func validEnvKey(key string) error {
	if key == "" || strings.ContainsAny(key, "=\x00") {
		return fmt.Errorf("invalid environment variable name %q", key)
	}
	return nil
}

// MapEnv is an in-memory VEnv, safe for concurrent use. The zero value is
// empty and ready to use.
type MapEnv struct {
	mu   sync.RWMutex
	vars map[string]string
}

var _ VEnv = (*MapEnv)(nil)

// NewMapEnv creates a new environment backed by a map.
func NewMapEnv() *MapEnv {
	return &MapEnv{}
}

// NewMapEnvFromEnvList creates an environment holding the key=value pairs in
// environ, later duplicates win. Entries with invalid names are dropped.
func NewMapEnvFromEnvList(environ []string) *MapEnv {
	m := &MapEnv{vars: make(map[string]string, len(environ))}
	for _, entry := range environ {
		key, value, _ := strings.Cut(entry, "=")
		if validEnvKey(key) == nil {
			m.vars[key] = value
		}
	}
	return m
}

// Clone returns an independent copy of the environment.
func (m *MapEnv) Clone() *MapEnv {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := &MapEnv{vars: make(map[string]string, len(m.vars))}
	for k, v := range m.vars {
		out.vars[k] = v
	}
	return out
}

// Len returns the number of variables set.
func (m *MapEnv) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vars)
}

func (m *MapEnv) Unsetenv(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vars, key)
	return nil
}

func (m *MapEnv) Setenv(key, value string) error {
	if err := validEnvKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars == nil {
		m.vars = make(map[string]string)
	}
	m.vars[key] = value
	return nil
}

func (m *MapEnv) LookupEnv(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.vars[key]
	return value, ok
}

func (m *MapEnv) Getenv(key string) string {
	value, _ := m.LookupEnv(key)
	return value
}

func (m *MapEnv) ExpandEnv(s string) string {
	return os.Expand(s, m.Getenv)
}

func (m *MapEnv) Environ() []string {
	m.mu.RLock()
	environ := make([]string, 0, len(m.vars))
	for k, v := range m.vars {
		environ = append(environ, k+"="+v)
	}
	m.mu.RUnlock()

	sort.Strings(environ)
	return environ
}
