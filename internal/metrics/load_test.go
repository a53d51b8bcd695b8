package metrics

import (
	"os"
	"path/filepath"
	"testing"
)

const locksYAML = `
metrics:
  - tag: pg_locks
    collector: locks
    sort: data
    server: both
    queries:
      - query: SELECT mode, count(*) FROM pg_locks GROUP BY mode
        version: 10
        columns:
          - name: mode
            type: label
          - name: count
            type: gauge
            description: Number of locks
`

func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "locks.yaml", locksYAML)

	defs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("got %d definitions, want 1", len(defs))
	}

	def := defs[0]
	if def.Tag != "pg_locks" || def.Collector != "locks" {
		t.Errorf("def = %+v", def)
	}
	if def.SortKey != "data" || def.ServerKind != "both" {
		t.Errorf("sort/server = %q/%q", def.SortKey, def.ServerKind)
	}
	if len(def.Queries) != 1 || def.Queries[0].Version != 10 {
		t.Fatalf("queries = %+v", def.Queries)
	}
	cols := def.Queries[0].Columns
	if len(cols) != 2 || cols[0].Type != "label" || cols[1].Type != "gauge" {
		t.Errorf("columns = %+v", cols)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "min.yaml", `
metrics:
  - tag: pg_uptime
    queries:
      - query: SELECT extract(epoch from now() - pg_postmaster_start_time())
        columns:
          - name: seconds
            type: counter
`)

	defs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if defs[0].SortKey != "name" {
		t.Errorf("SortKey = %q, want name default", defs[0].SortKey)
	}
	if defs[0].ServerKind != "both" {
		t.Errorf("ServerKind = %q, want both default", defs[0].ServerKind)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "b.yaml", locksYAML)
	writeYAML(t, dir, "a.yaml", `
metrics:
  - tag: pg_stat
    queries:
      - query: SELECT 1
        columns:
          - name: one
            type: gauge
`)
	writeYAML(t, dir, "ignored.txt", "not yaml")

	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	// Lexical file order: a.yaml before b.yaml.
	if defs[0].Tag != "pg_stat" || defs[1].Tag != "pg_locks" {
		t.Errorf("tags = %q, %q", defs[0].Tag, defs[1].Tag)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"missing tag", "metrics:\n  - collector: x\n    queries:\n      - query: SELECT 1\n"},
		{"no queries", "metrics:\n  - tag: x\n"},
		{"empty query", "metrics:\n  - tag: x\n    queries:\n      - query: \"\"\n"},
		{"bad sort", "metrics:\n  - tag: x\n    sort: size\n    queries:\n      - query: SELECT 1\n"},
		{"bad server", "metrics:\n  - tag: x\n    server: standby\n    queries:\n      - query: SELECT 1\n"},
		{"bad column type", "metrics:\n  - tag: x\n    queries:\n      - query: SELECT 1\n        columns:\n          - name: c\n            type: summary\n"},
		{"bad yaml", "metrics: ["},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeYAML(t, dir, "bad.yaml", tc.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing path")
	}
}
