package config

import (
	"fmt"
	"strings"
)

// KeyInfo is a resolved dotted configuration key. Main keys address the
// global section; server keys carry the server name in Context.
type KeyInfo struct {
	Key     string // leaf key, e.g. "log_level" or "port"
	Context string // server name for server-scoped keys, "" otherwise
	IsMain  bool
}

// MainKeys lists every global key understood by get and set, in the order
// conf get reports them.
var MainKeys = []string{
	"host", "unix_socket_dir", "pidfile", "libev",
	"metrics", "metrics_path", "metrics_cache_max_age", "metrics_cache_max_size",
	"bridge", "bridge_endpoints", "bridge_cache_max_age", "bridge_cache_max_size",
	"bridge_json", "bridge_json_cache_max_size",
	"management", "cache",
	"tls", "tls_cert_file", "tls_key_file", "tls_ca_file",
	"metrics_cert_file", "metrics_key_file", "metrics_ca_file",
	"blocking_timeout", "authentication_timeout",
	"keep_alive", "nodelay", "non_blocking", "backlog",
	"hugepage", "update_process_title",
	"log_type", "log_level", "log_path",
	"log_rotation_size", "log_rotation_age", "log_line_prefix", "log_mode",
	"extensions",
}

// ServerKeys lists every per-server key understood by get and set.
var ServerKeys = []string{
	"host", "port", "user", "data_dir", "wal_dir",
	"tls_cert_file", "tls_key_file", "tls_ca_file", "extensions",
}

// ParseKey resolves a dotted key string:
//
//	key                      global setting
//	pgexporter.key           global setting, explicit section
//	server.<name>.key        per-server setting
//
// Empty segments (leading, trailing or consecutive dots) and any other
// shape are rejected with ErrInvalidKey. Whether the leaf key exists is
// decided by the get/set operation, not here.
func ParseKey(key string) (KeyInfo, error) {
	if key == "" {
		return KeyInfo{}, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return KeyInfo{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}

	switch len(parts) {
	case 1:
		return KeyInfo{Key: parts[0], IsMain: true}, nil
	case 2:
		if parts[0] != MainSection {
			return KeyInfo{}, fmt.Errorf("%w: %q: unknown section %q", ErrInvalidKey, key, parts[0])
		}
		return KeyInfo{Key: parts[1], IsMain: true}, nil
	case 3:
		if parts[0] != "server" {
			return KeyInfo{}, fmt.Errorf("%w: %q: expected server.<name>.<key>", ErrInvalidKey, key)
		}
		return KeyInfo{Key: parts[2], Context: parts[1]}, nil
	}
	return KeyInfo{}, fmt.Errorf("%w: %q: too many segments", ErrInvalidKey, key)
}
