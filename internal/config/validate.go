package config

import (
	"fmt"
	"log/slog"
	"os"
)

// Validate checks the cross-field invariants of a candidate configuration.
// It may normalize fields (backlog floor, disabling incomplete TLS groups)
// before deciding; a returned error wraps ErrValidation.
func Validate(cfg *Config) error {
	if cfg.Host == "" {
		return fmt.Errorf("%w: no host defined", ErrValidation)
	}

	if cfg.UnixSocketDir == "" {
		return fmt.Errorf("%w: no unix_socket_dir defined", ErrValidation)
	}
	if info, err := os.Stat(cfg.UnixSocketDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: unix_socket_dir %q is not a directory", ErrValidation, cfg.UnixSocketDir)
	}

	if cfg.Metrics == PortDisabled && cfg.Bridge == PortDisabled {
		return fmt.Errorf("%w: neither metrics nor bridge is enabled", ErrValidation)
	}

	if cfg.BridgeJSON != PortDisabled {
		if cfg.Bridge == PortDisabled {
			return fmt.Errorf("%w: bridge_json requires bridge", ErrValidation)
		}
		if cfg.BridgeJSONCacheSize <= 0 {
			return fmt.Errorf("%w: bridge_json requires a non-zero bridge_json_cache_max_size", ErrValidation)
		}
	}

	if cfg.Backlog < MinBacklog {
		cfg.Backlog = MinBacklog
	}

	// An incomplete TLS file group is disabled rather than rejected, so a
	// certificate removed on disk cannot block a reload.
	if cfg.TLS {
		if !filesExist(cfg.TLSCertFile, cfg.TLSKeyFile) {
			slog.Warn("config: tls_cert_file or tls_key_file missing, disabling tls")
			cfg.TLS = false
			cfg.TLSCertFile = ""
			cfg.TLSKeyFile = ""
			cfg.TLSCAFile = ""
		}
	}
	if cfg.MetricsCertFile != "" || cfg.MetricsKeyFile != "" {
		if !filesExist(cfg.MetricsCertFile, cfg.MetricsKeyFile) {
			slog.Warn("config: metrics_cert_file or metrics_key_file missing, disabling metrics tls")
			cfg.MetricsCertFile = ""
			cfg.MetricsKeyFile = ""
			cfg.MetricsCAFile = ""
		}
	}

	if len(cfg.Servers) == 0 {
		return fmt.Errorf("%w: no servers defined", ErrValidation)
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.Name == MainSection || s.Name == "all" {
			return fmt.Errorf("%w: server name %q is reserved", ErrValidation, s.Name)
		}
		if s.Host == "" {
			return fmt.Errorf("%w: server %q: no host defined", ErrValidation, s.Name)
		}
		if s.Port == 0 {
			return fmt.Errorf("%w: server %q: no port defined", ErrValidation, s.Name)
		}
		if s.Username == "" {
			return fmt.Errorf("%w: server %q: no user defined", ErrValidation, s.Name)
		}
	}

	return nil
}

// ValidateUsers checks the decrypted user set against the configured
// servers. Every server must reference a known user.
func ValidateUsers(cfg *Config) error {
	if len(cfg.Users) == 0 {
		return fmt.Errorf("%w: no users defined", ErrValidation)
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if !hasUser(cfg.Users, s.Username) {
			return fmt.Errorf("%w: server %q: unknown user %q", ErrValidation, s.Name, s.Username)
		}
	}
	return nil
}

// ValidateAdmins only warns on a management/admins mismatch. Remote
// management without admins (or the reverse) is pointless but harmless.
func ValidateAdmins(cfg *Config) error {
	if cfg.Management > 0 && len(cfg.Admins) == 0 {
		slog.Warn("config: management is enabled but no admins are defined")
	}
	if cfg.Management <= 0 && len(cfg.Admins) > 0 {
		slog.Warn("config: admins are defined but management is not enabled")
	}
	return nil
}

func filesExist(paths ...string) bool {
	for _, p := range paths {
		if p == "" {
			return false
		}
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func hasUser(users []User, name string) bool {
	for i := range users {
		if users[i].Username == name {
			return true
		}
	}
	return false
}
