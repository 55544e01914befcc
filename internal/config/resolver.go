package config

import (
	"os"
	"regexp"
	"sort"
	"strings"
)

// CanonicalDatabaseURLKey is the slot a resolved connection string is cached in.
const CanonicalDatabaseURLKey = "POSTGRES_URL"

// DatabaseURLCandidates lists the connection-string keys in priority order.
// Unpooled connections come first.
var DatabaseURLCandidates = []string{
	"DATABASE_URL_UNPOOLED",
	"POSTGRES_URL_NON_POOLING",
	"DATABASE_URL",
	"POSTGRES_URL",
	"POSTGRES_POSTGRES_URL",
	"POSTGRES_DATABASE_URL",
	"POSTGRES_POSTGRES_URL_NON_POOLING",
	"POSTGRES_DATABASE_URL_NON_POOLING",
}

var (
	prefixedURLPattern    = regexp.MustCompile(`^POSTGRES_.*_URL$`)
	prefixedDBURLPattern  = regexp.MustCompile(`^POSTGRES_.*_DATABASE_URL$`)
	ignoredURLKeysPattern = regexp.MustCompile(`_PRISMA_|NO_SSL`)
)

// Source is a set of name/value configuration pairs.
type Source interface {
	Lookup(key string) (string, bool)
	Keys() []string
}

// Resolution is the outcome of connection-string discovery.
// An empty Resolution means the store is unconfigured.
type Resolution struct {
	URL string
	Key string
}

// Configured reports whether a connection string was found.
func (r Resolution) Configured() bool {
	return r.URL != ""
}

// ResolveDatabaseURL returns the first non-empty candidate from src. When none
// of the well-known keys is set it scans for provider-prefixed POSTGRES_*_URL
// keys. Absence is not an error.
func ResolveDatabaseURL(src Source) Resolution {
	for _, key := range DatabaseURLCandidates {
		if v, ok := src.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return Resolution{URL: strings.TrimSpace(v), Key: key}
		}
	}

	keys := src.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		k := strings.ToUpper(key)
		if ignoredURLKeysPattern.MatchString(k) {
			continue
		}
		if !prefixedURLPattern.MatchString(k) && !prefixedDBURLPattern.MatchString(k) {
			continue
		}
		if v, ok := src.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return Resolution{URL: strings.TrimSpace(v), Key: key}
		}
	}

	return Resolution{}
}

// EnvSource reads the process environment.
type EnvSource struct{}

// Lookup implements Source.
func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Keys implements Source.
func (EnvSource) Keys() []string {
	env := os.Environ()
	keys := make([]string, 0, len(env))
	for _, kv := range env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			keys = append(keys, kv[:i])
		}
	}
	return keys
}

// MapSource is a fixed set of pairs, mostly useful in tests.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys implements Source.
func (m MapSource) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// chainSource consults each source in order.
type chainSource []Source

func (c chainSource) Lookup(key string) (string, bool) {
	for _, s := range c {
		if v, ok := s.Lookup(key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func (c chainSource) Keys() []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, s := range c {
		for _, k := range s.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}
