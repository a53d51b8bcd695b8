package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pgexporter/pgexporter/internal/config"
)

// MaxDefinitions bounds the number of metric definitions loaded across all
// files.
const MaxDefinitions = 256

// File-level YAML schema.
type definitionsFile struct {
	Metrics []metricYAML `yaml:"metrics"`
}

type metricYAML struct {
	Tag       string      `yaml:"tag"`
	Collector string      `yaml:"collector"`
	Sort      string      `yaml:"sort"`
	Server    string      `yaml:"server"`
	Queries   []queryYAML `yaml:"queries"`
}

type queryYAML struct {
	Query   string       `yaml:"query"`
	Version int          `yaml:"version"`
	Columns []columnYAML `yaml:"columns"`
}

type columnYAML struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// Load reads metric definitions from a YAML file, or from every .yaml/.yml
// file in a directory (in lexical order). Definitions are validated as they
// are converted; the first bad definition fails the whole load so a reload
// never adopts a partial set.
func Load(path string) ([]config.MetricDef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = yamlFiles(path)
		if err != nil {
			return nil, err
		}
	}

	var defs []config.MetricDef
	for _, f := range files {
		fileDefs, err := loadFile(f)
		if err != nil {
			return nil, err
		}
		if len(defs)+len(fileDefs) > MaxDefinitions {
			return nil, fmt.Errorf("metrics: %s: more than %d definitions", path, MaxDefinitions)
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadFile(path string) ([]config.MetricDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("metrics: parse %s: %w", path, err)
	}

	defs := make([]config.MetricDef, 0, len(file.Metrics))
	for i, m := range file.Metrics {
		def, err := convert(m)
		if err != nil {
			return nil, fmt.Errorf("metrics: %s: metric %d: %w", path, i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func convert(m metricYAML) (config.MetricDef, error) {
	if m.Tag == "" {
		return config.MetricDef{}, fmt.Errorf("missing tag")
	}
	if len(m.Queries) == 0 {
		return config.MetricDef{}, fmt.Errorf("%s: no queries", m.Tag)
	}

	sortKey := m.Sort
	switch sortKey {
	case "":
		sortKey = "name"
	case "name", "data":
	default:
		return config.MetricDef{}, fmt.Errorf("%s: invalid sort %q", m.Tag, m.Sort)
	}

	serverKind := m.Server
	switch serverKind {
	case "":
		serverKind = "both"
	case "primary", "replica", "both":
	default:
		return config.MetricDef{}, fmt.Errorf("%s: invalid server %q", m.Tag, m.Server)
	}

	def := config.MetricDef{
		Tag:        m.Tag,
		Collector:  m.Collector,
		SortKey:    sortKey,
		ServerKind: serverKind,
	}

	for _, q := range m.Queries {
		if strings.TrimSpace(q.Query) == "" {
			return config.MetricDef{}, fmt.Errorf("%s: empty query", m.Tag)
		}
		mq := config.MetricQuery{Query: q.Query, Version: q.Version}
		for _, c := range q.Columns {
			switch c.Type {
			case "label", "counter", "gauge", "histogram":
			default:
				return config.MetricDef{}, fmt.Errorf("%s: invalid column type %q", m.Tag, c.Type)
			}
			mq.Columns = append(mq.Columns, config.MetricColumn{
				Name:        c.Name,
				Type:        c.Type,
				Description: c.Description,
			})
		}
		def.Queries = append(def.Queries, mq)
	}
	return def, nil
}
