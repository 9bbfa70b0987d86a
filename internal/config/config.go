// Package config resolves service settings from the environment, then an
// optional ini file, then a default. An env var PORT maps to the ini key
// "port" inside the service section.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

type Source struct {
	section *ini.Section
}

// Load reads path (if not empty) and selects section. A missing section
// is not an error: every lookup then falls through to env and defaults.
func Load(path, section string) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return &Source{}, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if !f.HasSection(section) {
		return &Source{}, nil
	}
	return &Source{section: f.Section(section)}, nil
}

// FromEnv returns a Source that only consults the environment.
func FromEnv() *Source { return &Source{} }

func (s *Source) lookup(key string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, true
	}
	if s == nil || s.section == nil {
		return "", false
	}
	k := strings.ToLower(key)
	if !s.section.HasKey(k) {
		return "", false
	}
	if v := strings.TrimSpace(s.section.Key(k).String()); v != "" {
		return v, true
	}
	return "", false
}

func (s *Source) String(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

func (s *Source) Int(key string, def int) int {
	if v, ok := s.lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (s *Source) Bool(key string, def bool) bool {
	if v, ok := s.lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Duration accepts Go durations ("3s") or bare milliseconds ("3000").
func (s *Source) Duration(key string, def time.Duration) time.Duration {
	v, ok := s.lookup(key)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return def
}

// List splits a comma separated value, dropping blanks.
func (s *Source) List(key, def string) []string {
	raw := s.String(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
