// Package metrics loads custom metric collection definitions from YAML.
//
// A definitions file holds a list of metrics, each with a tag, a collector
// group, a sort order, a server scope and one query variant per supported
// PostgreSQL version:
//
//	metrics:
//	  - tag: pg_locks
//	    collector: locks
//	    sort: name
//	    server: both
//	    queries:
//	      - query: SELECT ...
//	        version: 10
//	        columns:
//	          - name: count
//	            type: gauge
//	            description: Number of locks
//
// Load accepts either a single file or a directory of .yaml/.yml files and
// returns config.MetricDef records, so the configuration lifecycle can diff
// and adopt metric definitions together with everything else.
package metrics
