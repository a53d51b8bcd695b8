package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// pathKeys take environment-variable and home-directory expansion instead
// of the quoted-value extraction applied to every other key.
var pathKeys = map[string]bool{
	"unix_socket_dir":   true,
	"metrics_path":      true,
	"log_path":          true,
	"tls_cert_file":     true,
	"tls_key_file":      true,
	"tls_ca_file":       true,
	"metrics_cert_file": true,
	"metrics_key_file":  true,
	"metrics_ca_file":   true,
}

// ReadConfiguration parses the INI-like main configuration file at path
// into cfg. Unknown keys and malformed lines are logged and skipped;
// duplicate server names and capacity overruns abort the load.
func ReadConfiguration(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	section := ""
	var srv *Server

	// finalize copies the accumulating server entry into the configuration
	// once its section ends (next header or EOF).
	finalize := func() error {
		if srv == nil {
			return nil
		}
		if cfg.FindServer(srv.Name) >= 0 {
			return fmt.Errorf("config: server %q: %w", srv.Name, ErrDuplicate)
		}
		if len(cfg.Servers) >= MaxServers {
			return fmt.Errorf("config: servers: %w (max %d)", ErrCapacity, MaxServers)
		}
		cfg.Servers = append(cfg.Servers, *srv)
		srv = nil
		return nil
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimLeft(sc.Text(), " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}

		switch line[0] {
		case '[':
			end := strings.IndexByte(line, ']')
			if end < 0 {
				slog.Warn("config: malformed section header", "line", line)
				continue
			}
			if err := finalize(); err != nil {
				return err
			}
			section = line[1:end]
			if section != MainSection {
				srv = &Server{Name: section}
			}

		case '#', ';':
			// Comment.

		default:
			var key, value string
			var ok bool
			if hasPathKey(line) {
				key, value, ok = extractPathKeyValue(line)
			} else {
				key, value, ok = extractKeyValue(line)
			}
			if !ok {
				slog.Warn("config: malformed line", "section", sectionName(section), "line", line)
				continue
			}
			if unknown := applyKey(cfg, srv, section, key, value); unknown {
				slog.Warn("config: unknown key", "section", sectionName(section), "key", key, "value", value)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := finalize(); err != nil {
		return err
	}

	cfg.ConfigurationPath = path
	return nil
}

func sectionName(s string) string {
	if s == "" {
		return "<unknown>"
	}
	return s
}

func hasPathKey(line string) bool {
	for k := range pathKeys {
		if strings.HasPrefix(line, k) {
			return true
		}
	}
	return false
}

// extractKeyValue splits a `key = value` line. The key is the left-trimmed,
// unquoted token before the first '='. The value is right-trimmed, may be
// single- or double-quoted, and loses everything after an unescaped '#'.
func extractKeyValue(line string) (string, string, bool) {
	left, right, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}

	key := strings.Trim(strings.TrimSpace(left), "\"'")
	if key == "" {
		return "", "", false
	}

	value := stripComment(right)
	value = strings.TrimSpace(value)
	value = unquote(value)

	return key, value, true
}

// stripComment cuts s at the first '#' that is not preceded by a
// backslash, and collapses any escaped "\#" into a literal '#'.
func stripComment(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped && r == '#':
			b.WriteByte('#')
			escaped = false
		case escaped:
			b.WriteByte('\\')
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '#':
			return b.String()
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

// unquote strips one matching pair of single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// extractPathKeyValue splits a path-like `key = value` line. The key is
// the unquoted token before the first space or '='; the value is taken
// verbatim (no quote or comment handling) and then resolved against the
// environment and the home directory.
func extractPathKeyValue(line string) (string, string, bool) {
	line = strings.TrimLeft(line, " \t")
	i := strings.IndexAny(line, " =")
	if i < 0 {
		return "", "", false
	}
	key := line[:i]

	rest := strings.TrimLeft(line[i:], " \t=")
	rest = strings.TrimRight(rest, " \t\r")
	if rest == "" {
		return key, "", true
	}

	value, err := resolvePath(rest)
	if err != nil {
		return "", "", false
	}
	return key, value, true
}

// resolvePath expands $VARS and a leading ~ in a path value.
func resolvePath(p string) (string, error) {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", p, err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p, nil
}

// applyKey routes one key/value pair to the global section or the server
// currently being accumulated. It reports true when the key is unknown or
// used in the wrong section; the caller logs and continues.
func applyKey(cfg *Config, srv *Server, section, key, value string) bool {
	inMain := section == MainSection
	inServer := srv != nil

	switch key {
	case "host":
		if inMain {
			cfg.Host = value
		} else if inServer {
			srv.Host = value
		} else {
			return true
		}

	case "port":
		if !inServer {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		srv.Port = v

	case "user":
		if !inServer {
			return true
		}
		srv.Username = value

	case "data_dir":
		if !inServer {
			return true
		}
		srv.DataDir = value

	case "wal_dir":
		if !inServer {
			return true
		}
		srv.WALDir = value

	case "metrics":
		if !inMain {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		cfg.Metrics = v

	case "metrics_path":
		if !inMain {
			return true
		}
		cfg.MetricsPath = value

	case "metrics_cache_max_age":
		if !inMain {
			return true
		}
		v, err := asSeconds(value, 0)
		if err != nil {
			return true
		}
		cfg.MetricsCacheMaxAge = v

	case "metrics_cache_max_size":
		if !inMain {
			return true
		}
		v, err := asBytes(value, 0)
		if err != nil {
			return true
		}
		if v > MaxMetricsCacheSize {
			v = MaxMetricsCacheSize
		}
		cfg.MetricsCacheSize = v

	case "bridge":
		if !inMain {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		cfg.Bridge = v

	case "bridge_endpoints":
		if !inMain {
			return true
		}
		eps, err := parseEndpoints(value, false)
		if err != nil {
			return true
		}
		cfg.Endpoints = eps

	case "bridge_cache_max_age":
		if !inMain {
			return true
		}
		v, err := asSeconds(value, DefaultBridgeCacheMaxAge)
		if err != nil {
			return true
		}
		cfg.BridgeCacheMaxAge = v

	case "bridge_cache_max_size":
		if !inMain {
			return true
		}
		v, err := asBytes(value, DefaultBridgeCacheMaxSize)
		if err != nil {
			return true
		}
		if v > MaxBridgeCacheSize {
			v = MaxBridgeCacheSize
		}
		cfg.BridgeCacheSize = v

	case "bridge_json":
		if !inMain {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		cfg.BridgeJSON = v

	case "bridge_json_cache_max_size":
		if !inMain {
			return true
		}
		v, err := asBytes(value, DefaultBridgeJSONCacheMaxSize)
		if err != nil {
			return true
		}
		if v > MaxBridgeJSONCacheSize {
			v = MaxBridgeJSONCacheSize
		}
		cfg.BridgeJSONCacheSize = v

	case "management":
		if !inMain {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		cfg.Management = v

	case "cache":
		if !inMain {
			return true
		}
		v, err := asBool(value)
		if err != nil {
			return true
		}
		cfg.Cache = v

	case "tls":
		if !inMain {
			return true
		}
		v, err := asBool(value)
		if err != nil {
			return true
		}
		cfg.TLS = v

	case "tls_cert_file":
		if inMain {
			cfg.TLSCertFile = value
		} else if inServer {
			srv.TLSCertFile = value
		} else {
			return true
		}

	case "tls_key_file":
		if inMain {
			cfg.TLSKeyFile = value
		} else if inServer {
			srv.TLSKeyFile = value
		} else {
			return true
		}

	case "tls_ca_file":
		if inMain {
			cfg.TLSCAFile = value
		} else if inServer {
			srv.TLSCAFile = value
		} else {
			return true
		}

	case "metrics_cert_file":
		if !inMain {
			return true
		}
		cfg.MetricsCertFile = value

	case "metrics_key_file":
		if !inMain {
			return true
		}
		cfg.MetricsKeyFile = value

	case "metrics_ca_file":
		if !inMain {
			return true
		}
		cfg.MetricsCAFile = value

	case "blocking_timeout":
		if !inMain {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		cfg.BlockingTimeout = v

	case "authentication_timeout":
		if !inMain {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		cfg.AuthenticationTimeout = v

	case "pidfile":
		if !inMain {
			return true
		}
		cfg.PidFile = value

	case "libev":
		if !inMain {
			return true
		}
		cfg.Libev = value

	case "update_process_title":
		if !inMain {
			return true
		}
		cfg.ProcTitle = asProcTitle(value, UpdateProcessTitleVerbose)

	case "log_type":
		if !inMain {
			return true
		}
		cfg.Log.Type = asLogType(value)

	case "log_level":
		if !inMain {
			return true
		}
		cfg.Log.Level = asLogLevel(value)

	case "log_path":
		if !inMain {
			return true
		}
		cfg.Log.Path = value

	case "log_rotation_size":
		if !inMain {
			return true
		}
		v, err := asBytes(value, 0)
		if err != nil {
			return true
		}
		cfg.Log.RotationSize = v

	case "log_rotation_age":
		if !inMain {
			return true
		}
		v, err := asSeconds(value, 0)
		if err != nil {
			return true
		}
		cfg.Log.RotationAge = v

	case "log_line_prefix":
		if !inMain {
			return true
		}
		cfg.Log.LinePrefix = value

	case "log_mode":
		if !inMain {
			return true
		}
		cfg.Log.Mode = asLogMode(value)

	case "unix_socket_dir":
		if !inMain {
			return true
		}
		cfg.UnixSocketDir = value

	case "keep_alive":
		if !inMain {
			return true
		}
		v, err := asBool(value)
		if err != nil {
			return true
		}
		cfg.KeepAlive = v

	case "nodelay":
		if !inMain {
			return true
		}
		v, err := asBool(value)
		if err != nil {
			return true
		}
		cfg.NoDelay = v

	case "non_blocking":
		if !inMain {
			return true
		}
		v, err := asBool(value)
		if err != nil {
			return true
		}
		cfg.NonBlocking = v

	case "backlog":
		if !inMain {
			return true
		}
		v, err := asInt(value)
		if err != nil {
			return true
		}
		cfg.Backlog = v

	case "hugepage":
		if !inMain {
			return true
		}
		cfg.Hugepage = asHugepage(value)

	case "extensions":
		if inMain {
			cfg.GlobalExtensions = value
		} else if inServer {
			srv.Extensions = value
		} else {
			return true
		}

	default:
		return true
	}

	return false
}
