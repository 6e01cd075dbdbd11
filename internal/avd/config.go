// Copyright (C) 2025 Forkbomb B.V.
// License: AGPL-3.0-only

package avd

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	units "github.com/docker/go-units"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/ini.v1"
)

// FileStore is the file access the launcher needs for config.ini.
type FileStore interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm fs.FileMode) error
}

// OSFileStore reads and writes the local filesystem.
type OSFileStore struct{}

func (OSFileStore) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSFileStore) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// MergeConfig parses a config.ini payload, applies overrides on top and
// renders the result as one key=value line per entry. Existing keys keep
// their position; keys only present in overrides are appended sorted.
//
// Lines are split on the first '=' only. Quotes, backticks and trailing
// backslashes are plain value bytes, and override values are written
// verbatim. Lines without a key are carried through unchanged.
func MergeConfig(data []byte, overrides map[string]string) ([]byte, error) {
	cfg := ini.Empty(ini.LoadOptions{AllowBooleanKeys: true})
	sec := cfg.Section(ini.DefaultSection)
	verbatim := map[string]bool{}

	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			if _, err := sec.NewBooleanKey(line); err != nil {
				return nil, fmt.Errorf("parse config.ini line %q: %w", line, err)
			}
			verbatim[line] = true
			continue
		}
		if _, err := sec.NewKey(name, strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("parse config.ini key %s: %w", name, err)
		}
		delete(verbatim, name)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		delete(verbatim, k)
		if sec.HasKey(k) {
			sec.Key(k).SetValue(overrides[k])
			continue
		}
		if _, err := sec.NewKey(k, overrides[k]); err != nil {
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}

	var buf bytes.Buffer
	for _, key := range sec.Keys() {
		buf.WriteString(key.Name())
		if !verbatim[key.Name()] {
			buf.WriteByte('=')
			buf.WriteString(key.Value())
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ApplyConfig rewrites the config.ini of the named AVD with overrides merged
// in. It does nothing when overrides is empty.
func ApplyConfig(env Env, files FileStore, name string, overrides map[string]string) (string, error) {
	path := env.ConfigPath(name)
	if len(overrides) == 0 {
		return path, nil
	}
	_, span := startSpan(
		env,
		"avd.ApplyConfig",
		attribute.String("name", name),
		attribute.Int("overrides", len(overrides)),
	)
	defer span.End()
	logEvent(env, "override configuration", "name", name, "config_path", path, "overrides", len(overrides))

	current, err := files.ReadFile(path)
	if err != nil {
		recordSpanError(span, err)
		return path, fmt.Errorf("read config: %w", err)
	}
	merged, err := MergeConfig(current, overrides)
	if err != nil {
		recordSpanError(span, err)
		return path, err
	}
	if err := files.WriteFile(path, merged, 0o644); err != nil {
		recordSpanError(span, err)
		return path, fmt.Errorf("write config: %w", err)
	}
	logEvent(env, "configuration written", "config_path", path, "size", units.HumanSize(float64(len(merged))))
	return path, nil
}
