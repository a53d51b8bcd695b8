package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

// State owns the live configuration. Readers take a snapshot pointer and
// never see a half-applied record: reload and single-key mutation build a
// candidate Config, validate it, and adopt it by swapping the pointer
// under the write lock.
type State struct {
	mu   sync.RWMutex
	live *Config

	// MetricsLoader reads custom metric definitions for a metrics_path
	// value. Wired by the daemon so this package stays free of the YAML
	// schema.
	MetricsLoader func(path string) ([]MetricDef, error)

	// LogRestart is invoked after adoption when the log file group
	// (path, rotation size, rotation age, mode) changed, so the logging
	// subsystem can reopen its sink.
	LogRestart func(lc LogConfig) error
}

// NewState wraps an initial, already validated configuration.
func NewState(cfg *Config) *State {
	return &State{live: cfg}
}

// Live returns the current configuration snapshot. The returned record is
// shared and must be treated as read-only.
func (s *State) Live() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Reload re-reads the configuration, users and admins files recorded at
// first load, validates the result and adopts it. Fields that only take
// effect after a process restart are adopted too, but each one is logged
// and the returned flag is true so the caller can surface it. On any
// failure the candidate is discarded and the live configuration is kept.
func (s *State) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.live

	cand := New()
	if err := ReadConfiguration(cand, old.ConfigurationPath); err != nil {
		return false, err
	}
	if err := ReadUsers(cand, old.UsersPath); err != nil {
		return false, err
	}
	if err := ReadAdmins(cand, old.AdminsPath); err != nil {
		return false, err
	}
	if s.MetricsLoader != nil && cand.MetricsPath != "" {
		defs, err := s.MetricsLoader(cand.MetricsPath)
		if err != nil {
			return false, fmt.Errorf("config: metrics definitions: %w", err)
		}
		cand.MetricDefs = defs
	}

	if err := Validate(cand); err != nil {
		return false, err
	}
	if err := ValidateUsers(cand); err != nil {
		return false, err
	}
	if err := ValidateAdmins(cand); err != nil {
		return false, err
	}

	restart := false
	for _, ch := range diffRestart(old, cand) {
		slog.Info("config: restart required to apply parameter",
			"key", ch.Key, "old", ch.Old, "new", ch.New)
		restart = true
	}

	logChanged := logGroupChanged(old.Log, cand.Log)
	s.live = cand

	if logChanged && s.LogRestart != nil {
		if err := s.LogRestart(cand.Log); err != nil {
			slog.Error("config: restarting logging failed", "err", err)
		}
	}

	slog.Info("config: reloaded", "path", cand.ConfigurationPath, "restart_required", restart)
	return restart, nil
}

// SetResult reports the outcome of a single-key mutation. When
// RestartRequired is set the mutation was not adopted: Old holds the value
// still in effect and New the requested value.
type SetResult struct {
	Key             string
	Old             string
	New             string
	RestartRequired bool
}

// Get renders the current value of a dotted configuration key.
func (s *State) Get(key string) (string, error) {
	info, err := ParseKey(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return renderValue(s.live, info)
}

// Set applies one key/value mutation: clone the live configuration, coerce
// the value into the clone, run full validation, and adopt the clone unless
// the change needs a process restart.
func (s *State) Set(key, value string) (*SetResult, error) {
	info, err := ParseKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := renderValue(s.live, info)
	if err != nil {
		return nil, err
	}

	cand := s.live.Clone()
	if err := applyField(cand, info, value); err != nil {
		return nil, err
	}
	if err := Validate(cand); err != nil {
		return nil, err
	}
	if err := ValidateUsers(cand); err != nil {
		return nil, err
	}

	if len(diffRestart(s.live, cand)) > 0 {
		requested, _ := renderValue(cand, info)
		slog.Info("config: set requires restart, not applied",
			"key", key, "current", old, "requested", requested)
		return &SetResult{Key: key, Old: old, New: requested, RestartRequired: true}, nil
	}

	logChanged := logGroupChanged(s.live.Log, cand.Log)
	s.live = cand

	if logChanged && s.LogRestart != nil {
		if err := s.LogRestart(cand.Log); err != nil {
			slog.Error("config: restarting logging failed", "err", err)
		}
	}

	applied, _ := renderValue(cand, info)
	slog.Info("config: set applied", "key", key, "old", old, "new", applied)
	return &SetResult{Key: key, Old: old, New: applied}, nil
}

// change is one restart-classified field difference.
type change struct {
	Key string
	Old string
	New string
}

// diffRestart compares the fields that cannot take effect in a running
// process: listener and cache geometry, process-level knobs and the log
// sink type. Everything else is applied live.
func diffRestart(old, cand *Config) []change {
	var out []change

	add := func(key, o, n string) {
		if o != n {
			out = append(out, change{Key: key, Old: o, New: n})
		}
	}

	add("unix_socket_dir", old.UnixSocketDir, cand.UnixSocketDir)
	add("pidfile", old.PidFile, cand.PidFile)
	add("libev", old.Libev, cand.Libev)
	add("hugepage", hugepageString(old.Hugepage), hugepageString(cand.Hugepage))
	add("update_process_title", procTitleString(old.ProcTitle), procTitleString(cand.ProcTitle))
	add("log_type", old.Log.Type, cand.Log.Type)
	add("metrics_cache_max_size", formatInt64(old.MetricsCacheSize), formatInt64(cand.MetricsCacheSize))
	add("bridge", strconv.Itoa(old.Bridge), strconv.Itoa(cand.Bridge))
	add("bridge_endpoints", endpointsString(old.Endpoints), endpointsString(cand.Endpoints))
	add("bridge_cache_max_size", formatInt64(old.BridgeCacheSize), formatInt64(cand.BridgeCacheSize))
	add("bridge_json", strconv.Itoa(old.BridgeJSON), strconv.Itoa(cand.BridgeJSON))
	add("bridge_json_cache_max_size", formatInt64(old.BridgeJSONCacheSize), formatInt64(cand.BridgeJSONCacheSize))

	return out
}

// logGroupChanged reports whether the log sink must be reopened.
func logGroupChanged(old, cand LogConfig) bool {
	return old.Path != cand.Path ||
		old.RotationSize != cand.RotationSize ||
		old.RotationAge != cand.RotationAge ||
		old.Mode != cand.Mode
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// renderValue produces the string form of one configuration field, as
// reported by conf get and the mutation log.
func renderValue(cfg *Config, info KeyInfo) (string, error) {
	if !info.IsMain {
		return renderServerValue(cfg, info)
	}

	switch info.Key {
	case "host":
		return cfg.Host, nil
	case "unix_socket_dir":
		return cfg.UnixSocketDir, nil
	case "pidfile":
		return cfg.PidFile, nil
	case "libev":
		return cfg.Libev, nil
	case "metrics":
		return strconv.Itoa(cfg.Metrics), nil
	case "metrics_path":
		return cfg.MetricsPath, nil
	case "metrics_cache_max_age":
		return strconv.Itoa(cfg.MetricsCacheMaxAge), nil
	case "metrics_cache_max_size":
		return formatInt64(cfg.MetricsCacheSize), nil
	case "bridge":
		return strconv.Itoa(cfg.Bridge), nil
	case "bridge_endpoints":
		return endpointsString(cfg.Endpoints), nil
	case "bridge_cache_max_age":
		return strconv.Itoa(cfg.BridgeCacheMaxAge), nil
	case "bridge_cache_max_size":
		return formatInt64(cfg.BridgeCacheSize), nil
	case "bridge_json":
		return strconv.Itoa(cfg.BridgeJSON), nil
	case "bridge_json_cache_max_size":
		return formatInt64(cfg.BridgeJSONCacheSize), nil
	case "management":
		return strconv.Itoa(cfg.Management), nil
	case "cache":
		return formatBool(cfg.Cache), nil
	case "tls":
		return formatBool(cfg.TLS), nil
	case "tls_cert_file":
		return cfg.TLSCertFile, nil
	case "tls_key_file":
		return cfg.TLSKeyFile, nil
	case "tls_ca_file":
		return cfg.TLSCAFile, nil
	case "metrics_cert_file":
		return cfg.MetricsCertFile, nil
	case "metrics_key_file":
		return cfg.MetricsKeyFile, nil
	case "metrics_ca_file":
		return cfg.MetricsCAFile, nil
	case "blocking_timeout":
		return strconv.Itoa(cfg.BlockingTimeout), nil
	case "authentication_timeout":
		return strconv.Itoa(cfg.AuthenticationTimeout), nil
	case "keep_alive":
		return formatBool(cfg.KeepAlive), nil
	case "nodelay":
		return formatBool(cfg.NoDelay), nil
	case "non_blocking":
		return formatBool(cfg.NonBlocking), nil
	case "backlog":
		return strconv.Itoa(cfg.Backlog), nil
	case "hugepage":
		return hugepageString(cfg.Hugepage), nil
	case "update_process_title":
		return procTitleString(cfg.ProcTitle), nil
	case "log_type":
		return cfg.Log.Type, nil
	case "log_level":
		return cfg.Log.Level, nil
	case "log_path":
		return cfg.Log.Path, nil
	case "log_rotation_size":
		return formatInt64(cfg.Log.RotationSize), nil
	case "log_rotation_age":
		return strconv.Itoa(cfg.Log.RotationAge), nil
	case "log_line_prefix":
		return cfg.Log.LinePrefix, nil
	case "log_mode":
		return cfg.Log.Mode, nil
	case "extensions":
		return cfg.GlobalExtensions, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, info.Key)
}

func renderServerValue(cfg *Config, info KeyInfo) (string, error) {
	i := cfg.FindServer(info.Context)
	if i < 0 {
		return "", fmt.Errorf("%w: server %q", ErrNotFound, info.Context)
	}
	s := &cfg.Servers[i]

	switch info.Key {
	case "host":
		return s.Host, nil
	case "port":
		return strconv.Itoa(s.Port), nil
	case "user":
		return s.Username, nil
	case "data_dir":
		return s.DataDir, nil
	case "wal_dir":
		return s.WALDir, nil
	case "tls_cert_file":
		return s.TLSCertFile, nil
	case "tls_key_file":
		return s.TLSKeyFile, nil
	case "tls_ca_file":
		return s.TLSCAFile, nil
	case "extensions":
		return s.Extensions, nil
	}
	return "", fmt.Errorf("%w: server key %q", ErrUnknownKey, info.Key)
}

// applyField coerces one value into a candidate configuration. Unlike
// file parsing, a bad value or an unknown key is an error, not a skip.
func applyField(cfg *Config, info KeyInfo, value string) error {
	if !info.IsMain {
		return applyServerField(cfg, info, value)
	}

	var err error
	switch info.Key {
	case "host":
		cfg.Host = value
	case "unix_socket_dir":
		cfg.UnixSocketDir, err = resolvePath(value)
	case "pidfile":
		cfg.PidFile = value
	case "libev":
		cfg.Libev = value
	case "metrics":
		cfg.Metrics, err = asInt(value)
	case "metrics_path":
		cfg.MetricsPath, err = resolvePath(value)
	case "metrics_cache_max_age":
		cfg.MetricsCacheMaxAge, err = asSeconds(value, cfg.MetricsCacheMaxAge)
	case "metrics_cache_max_size":
		cfg.MetricsCacheSize, err = asBytes(value, cfg.MetricsCacheSize)
		if err == nil && cfg.MetricsCacheSize > MaxMetricsCacheSize {
			cfg.MetricsCacheSize = MaxMetricsCacheSize
		}
	case "bridge":
		cfg.Bridge, err = asInt(value)
	case "bridge_endpoints":
		cfg.Endpoints, err = parseEndpoints(value, true)
	case "bridge_cache_max_age":
		cfg.BridgeCacheMaxAge, err = asSeconds(value, cfg.BridgeCacheMaxAge)
	case "bridge_cache_max_size":
		cfg.BridgeCacheSize, err = asBytes(value, cfg.BridgeCacheSize)
		if err == nil && cfg.BridgeCacheSize > MaxBridgeCacheSize {
			cfg.BridgeCacheSize = MaxBridgeCacheSize
		}
	case "bridge_json":
		cfg.BridgeJSON, err = asInt(value)
	case "bridge_json_cache_max_size":
		cfg.BridgeJSONCacheSize, err = asBytes(value, cfg.BridgeJSONCacheSize)
		if err == nil && cfg.BridgeJSONCacheSize > MaxBridgeJSONCacheSize {
			cfg.BridgeJSONCacheSize = MaxBridgeJSONCacheSize
		}
	case "management":
		cfg.Management, err = asInt(value)
	case "cache":
		cfg.Cache, err = asBool(value)
	case "tls":
		cfg.TLS, err = asBool(value)
	case "tls_cert_file":
		cfg.TLSCertFile, err = resolvePath(value)
	case "tls_key_file":
		cfg.TLSKeyFile, err = resolvePath(value)
	case "tls_ca_file":
		cfg.TLSCAFile, err = resolvePath(value)
	case "metrics_cert_file":
		cfg.MetricsCertFile, err = resolvePath(value)
	case "metrics_key_file":
		cfg.MetricsKeyFile, err = resolvePath(value)
	case "metrics_ca_file":
		cfg.MetricsCAFile, err = resolvePath(value)
	case "blocking_timeout":
		cfg.BlockingTimeout, err = asInt(value)
	case "authentication_timeout":
		cfg.AuthenticationTimeout, err = asInt(value)
	case "keep_alive":
		cfg.KeepAlive, err = asBool(value)
	case "nodelay":
		cfg.NoDelay, err = asBool(value)
	case "non_blocking":
		cfg.NonBlocking, err = asBool(value)
	case "backlog":
		cfg.Backlog, err = asInt(value)
	case "hugepage":
		cfg.Hugepage = asHugepage(value)
	case "update_process_title":
		cfg.ProcTitle = asProcTitle(value, cfg.ProcTitle)
	case "log_type":
		cfg.Log.Type = asLogType(value)
	case "log_level":
		cfg.Log.Level = asLogLevel(value)
	case "log_path":
		cfg.Log.Path, err = resolvePath(value)
	case "log_rotation_size":
		cfg.Log.RotationSize, err = asBytes(value, cfg.Log.RotationSize)
	case "log_rotation_age":
		cfg.Log.RotationAge, err = asSeconds(value, cfg.Log.RotationAge)
	case "log_line_prefix":
		cfg.Log.LinePrefix = value
	case "log_mode":
		cfg.Log.Mode = asLogMode(value)
	case "extensions":
		cfg.GlobalExtensions = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, info.Key)
	}
	if err != nil {
		return fmt.Errorf("config: set %s: %w", info.Key, err)
	}
	return nil
}

func applyServerField(cfg *Config, info KeyInfo, value string) error {
	i := cfg.FindServer(info.Context)
	if i < 0 {
		return fmt.Errorf("%w: server %q", ErrNotFound, info.Context)
	}
	s := &cfg.Servers[i]

	var err error
	switch info.Key {
	case "host":
		s.Host = value
	case "port":
		s.Port, err = asInt(value)
	case "user":
		s.Username = value
	case "data_dir":
		s.DataDir = value
	case "wal_dir":
		s.WALDir = value
	case "tls_cert_file":
		s.TLSCertFile, err = resolvePath(value)
	case "tls_key_file":
		s.TLSKeyFile, err = resolvePath(value)
	case "tls_ca_file":
		s.TLSCAFile, err = resolvePath(value)
	case "extensions":
		s.Extensions = value
	default:
		return fmt.Errorf("%w: server key %q", ErrUnknownKey, info.Key)
	}
	if err != nil {
		return fmt.Errorf("config: set server %s %s: %w", info.Context, info.Key, err)
	}
	return nil
}
