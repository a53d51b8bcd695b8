package management_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgexporter/pgexporter/internal/config"
	"github.com/pgexporter/pgexporter/internal/management"
	"github.com/pgexporter/pgexporter/internal/vault"
)

// --- test helpers -----------------------------------------------------------

func newState(t *testing.T) *config.State {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := vault.SaveMasterKey("master-key-123"); err != nil {
		t.Fatalf("save master key: %v", err)
	}

	usersPath := filepath.Join(home, "users.conf")
	if err := vault.AddUser(usersPath, "master-key-123", "pgexporter", "secret"); err != nil {
		t.Fatalf("add user: %v", err)
	}

	confPath := filepath.Join(home, "pgexporter.conf")
	content := fmt.Sprintf(`[pgexporter]
host = localhost
unix_socket_dir = %s
metrics = 5001
management = 5002

[primary]
host = localhost
port = 5432
user = pgexporter
`, t.TempDir())
	if err := os.WriteFile(confPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg := config.New()
	if err := config.ReadConfiguration(cfg, confPath); err != nil {
		t.Fatalf("ReadConfiguration: %v", err)
	}
	if err := config.ReadUsers(cfg, usersPath); err != nil {
		t.Fatalf("ReadUsers: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := config.ValidateUsers(cfg); err != nil {
		t.Fatalf("ValidateUsers: %v", err)
	}
	return config.NewState(cfg)
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) management.Result {
	t.Helper()
	var res management.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
	return res
}

// --- /api/v1/conf/get --------------------------------------------------------

func TestConfGet_SingleKey(t *testing.T) {
	h := management.New(newState(t))
	rr := do(t, h, http.MethodGet, "/api/v1/conf/get?key=metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	res := decode(t, rr)
	if res.Status != "OK" || res.Command != "conf get" {
		t.Fatalf("envelope = %+v", res)
	}
	if res.Response["metrics"] != "5001" {
		t.Errorf("metrics = %v", res.Response["metrics"])
	}
}

func TestConfGet_FullTree(t *testing.T) {
	h := management.New(newState(t))
	rr := do(t, h, http.MethodGet, "/api/v1/conf/get")

	res := decode(t, rr)
	if res.Status != "OK" {
		t.Fatalf("envelope = %+v", res)
	}
	for _, key := range []string{"host", "metrics", "log_level", "server"} {
		if _, ok := res.Response[key]; !ok {
			t.Errorf("missing key %q in full tree", key)
		}
	}

	servers, ok := res.Response["server"].(map[string]any)
	if !ok {
		t.Fatalf("server subtree = %T, want object", res.Response["server"])
	}
	primary, ok := servers["primary"].(map[string]any)
	if !ok {
		t.Fatalf("server.primary = %T, want object", servers["primary"])
	}
	if primary["port"] != "5432" || primary["user"] != "pgexporter" {
		t.Errorf("server.primary = %+v", primary)
	}
}

func TestConfGet_Errors(t *testing.T) {
	h := management.New(newState(t))

	if rr := do(t, h, http.MethodGet, "/api/v1/conf/get?key=no_such_key"); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown key: status %d, want 400", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/v1/conf/get?key=server.ghost.port"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown server: status %d, want 404", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/api/v1/conf/get"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: status %d, want 405", rr.Code)
	}
}

// --- /api/v1/conf/set --------------------------------------------------------

func TestConfSet_Live(t *testing.T) {
	state := newState(t)
	h := management.New(state)

	rr := do(t, h, http.MethodPost, "/api/v1/conf/set?key=blocking_timeout&value=60")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}

	res := decode(t, rr)
	if res.Response["old"] != "30" || res.Response["new"] != "60" {
		t.Errorf("response = %+v", res.Response)
	}
	if state.Live().BlockingTimeout != 60 {
		t.Errorf("BlockingTimeout = %d", state.Live().BlockingTimeout)
	}
}

func TestConfSet_RestartRequired(t *testing.T) {
	state := newState(t)
	h := management.New(state)

	rr := do(t, h, http.MethodPost, "/api/v1/conf/set?key=bridge&value=5003")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	res := decode(t, rr)
	if res.Response["restart_required"] != true {
		t.Fatalf("response = %+v", res.Response)
	}
	if res.Response["current"] != "-1" || res.Response["requested"] != "5003" {
		t.Errorf("response = %+v", res.Response)
	}
	if state.Live().Bridge != config.PortDisabled {
		t.Errorf("Bridge = %d, want unchanged", state.Live().Bridge)
	}
}

func TestConfSet_Errors(t *testing.T) {
	h := management.New(newState(t))

	if rr := do(t, h, http.MethodPost, "/api/v1/conf/set"); rr.Code != http.StatusBadRequest {
		t.Errorf("missing key: status %d, want 400", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/api/v1/conf/set?key=no_such_key&value=1"); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown key: status %d, want 400", rr.Code)
	}
	// Emptying the host breaks validation, so the mutation is rejected.
	if rr := do(t, h, http.MethodPost, "/api/v1/conf/set?key=host&value="); rr.Code != http.StatusConflict {
		t.Errorf("invalid candidate: status %d, want 409", rr.Code)
	}
}

// --- /api/v1/status ----------------------------------------------------------

func TestStatus(t *testing.T) {
	h := management.New(newState(t))
	rr := do(t, h, http.MethodGet, "/api/v1/status")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["servers"].(float64) != 1 {
		t.Errorf("servers = %v", resp["servers"])
	}
	if resp["users"].(float64) != 1 {
		t.Errorf("users = %v", resp["users"])
	}
}

// --- envelope rendering -------------------------------------------------------

func TestResultRender_Text(t *testing.T) {
	res := management.NewResult("user ls").Success(map[string]any{
		"users": []string{"alice", "bob"},
	})

	var buf bytes.Buffer
	if err := res.Render(&buf, management.FormatText); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"user ls: OK", "alice", "bob"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestResultRender_JSON(t *testing.T) {
	res := management.NewResult("conf get").Success(map[string]any{"metrics": "5001"})

	var buf bytes.Buffer
	if err := res.Render(&buf, management.FormatJSON); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var decoded management.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Command != "conf get" || decoded.Status != "OK" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Response["metrics"] != "5001" {
		t.Errorf("response = %+v", decoded.Response)
	}
}

func TestResultRender_Error(t *testing.T) {
	res := management.NewResult("conf set").Fail(fmt.Errorf("bad value"))

	var buf bytes.Buffer
	if err := res.Render(&buf, management.FormatText); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("bad value")) {
		t.Errorf("output missing error: %s", buf.String())
	}
}
