package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgexporter/pgexporter/internal/vault"
)

const testMasterKey = "master-key-123"

// newTestState builds a State from real files: a master key and users
// vault under a temporary HOME, and a minimal main configuration.
func newTestState(t *testing.T) (*State, string, string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := vault.SaveMasterKey(testMasterKey); err != nil {
		t.Fatalf("save master key: %v", err)
	}

	usersPath := filepath.Join(home, "pgexporter_users.conf")
	if err := vault.AddUser(usersPath, testMasterKey, "pgexporter", "secret"); err != nil {
		t.Fatalf("add user: %v", err)
	}

	sockDir := t.TempDir()
	confPath := filepath.Join(home, "pgexporter.conf")
	writeTestConf(t, confPath, sockDir, 300)

	cfg := New()
	if err := ReadConfiguration(cfg, confPath); err != nil {
		t.Fatalf("ReadConfiguration: %v", err)
	}
	if err := ReadUsers(cfg, usersPath); err != nil {
		t.Fatalf("ReadUsers: %v", err)
	}
	if err := ReadAdmins(cfg, ""); err != nil {
		t.Fatalf("ReadAdmins: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := ValidateUsers(cfg); err != nil {
		t.Fatalf("ValidateUsers: %v", err)
	}

	return NewState(cfg), confPath, sockDir
}

func writeTestConf(t *testing.T, path, sockDir string, cacheAge int) {
	t.Helper()
	content := fmt.Sprintf(`[pgexporter]
host = localhost
unix_socket_dir = %s
metrics = 5001
metrics_cache_max_age = %d

[primary]
host = localhost
port = 5432
user = pgexporter
`, sockDir, cacheAge)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
}

func TestStateGet(t *testing.T) {
	state, _, _ := newTestState(t)

	cases := []struct {
		key  string
		want string
	}{
		{"host", "localhost"},
		{"pgexporter.metrics", "5001"},
		{"metrics_cache_max_age", "300"},
		{"cache", "true"},
		{"hugepage", "try"},
		{"update_process_title", "verbose"},
		{"server.primary.port", "5432"},
		{"server.primary.user", "pgexporter"},
	}
	for _, tc := range cases {
		got, err := state.Get(tc.key)
		if err != nil {
			t.Errorf("Get(%q): %v", tc.key, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Get(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestStateGet_Errors(t *testing.T) {
	state, _, _ := newTestState(t)

	if _, err := state.Get("no_such_key"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key: err = %v, want ErrUnknownKey", err)
	}
	if _, err := state.Get("server.ghost.port"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown server: err = %v, want ErrNotFound", err)
	}
	if _, err := state.Get("a.b.c.d"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad key: err = %v, want ErrInvalidKey", err)
	}
}

func TestStateSet_LiveField(t *testing.T) {
	state, _, _ := newTestState(t)

	res, err := state.Set("blocking_timeout", "60")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if res.RestartRequired {
		t.Fatal("blocking_timeout should apply live")
	}
	if res.Old != "30" || res.New != "60" {
		t.Errorf("result = %+v", res)
	}
	if state.Live().BlockingTimeout != 60 {
		t.Errorf("BlockingTimeout = %d", state.Live().BlockingTimeout)
	}
}

func TestStateSet_ServerField(t *testing.T) {
	state, _, _ := newTestState(t)

	res, err := state.Set("server.primary.port", "6432")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if res.RestartRequired {
		t.Fatal("server port should apply live")
	}
	if got := state.Live().Servers[0].Port; got != 6432 {
		t.Errorf("port = %d", got)
	}
}

func TestStateSet_RestartRequired(t *testing.T) {
	state, _, _ := newTestState(t)

	res, err := state.Set("bridge", "5003")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !res.RestartRequired {
		t.Fatal("bridge should require a restart")
	}
	if res.Old != "-1" || res.New != "5003" {
		t.Errorf("result = %+v", res)
	}
	// Not adopted: the live record still has the bridge disabled.
	if state.Live().Bridge != PortDisabled {
		t.Errorf("Bridge = %d, want unchanged", state.Live().Bridge)
	}
}

func TestStateSet_Errors(t *testing.T) {
	state, _, _ := newTestState(t)

	if _, err := state.Set("blocking_timeout", "abc"); err == nil {
		t.Error("bad value: expected error")
	}
	if _, err := state.Set("no_such_key", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown key: err = %v, want ErrUnknownKey", err)
	}
	if _, err := state.Set("server.ghost.port", "1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown server: err = %v, want ErrNotFound", err)
	}
	// A mutation that breaks validation is rejected and not adopted.
	if _, err := state.Set("host", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid candidate: err = %v, want ErrValidation", err)
	}
	if state.Live().Host != "localhost" {
		t.Errorf("Host = %q, want unchanged", state.Live().Host)
	}
}

func TestStateReload(t *testing.T) {
	state, confPath, sockDir := newTestState(t)

	writeTestConf(t, confPath, sockDir, 600)
	restart, err := state.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if restart {
		t.Error("cache age change should not require restart")
	}
	if got := state.Live().MetricsCacheMaxAge; got != 600 {
		t.Errorf("MetricsCacheMaxAge = %d", got)
	}
}

func TestStateReload_RestartFlag(t *testing.T) {
	state, confPath, sockDir := newTestState(t)

	content := fmt.Sprintf(`[pgexporter]
host = localhost
unix_socket_dir = %s
metrics = 5001
pidfile = /run/pgexporter.pid

[primary]
host = localhost
port = 5432
user = pgexporter
`, sockDir)
	if err := os.WriteFile(confPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	restart, err := state.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !restart {
		t.Error("pidfile change should flag a restart")
	}
	// The field is still adopted so a later restart picks it up.
	if got := state.Live().PidFile; got != "/run/pgexporter.pid" {
		t.Errorf("PidFile = %q", got)
	}
}

func TestStateReload_FailureKeepsLive(t *testing.T) {
	state, confPath, _ := newTestState(t)

	if err := os.WriteFile(confPath, []byte("[pgexporter]\nmetrics = 5001\n"), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	if _, err := state.Reload(); err == nil {
		t.Fatal("expected reload to fail validation")
	}
	if state.Live().Host != "localhost" {
		t.Errorf("Host = %q, want previous configuration", state.Live().Host)
	}
	if len(state.Live().Servers) != 1 {
		t.Errorf("servers = %d, want previous configuration", len(state.Live().Servers))
	}
}
