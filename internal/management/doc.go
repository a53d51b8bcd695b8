// Package management exposes the runtime configuration operations: reading
// and mutating single keys, dumping the full configuration tree and
// triggering a reload.
//
// Every operation produces a Result envelope carrying the command name,
// start/end timestamps, an OK/Error status and a response payload. The
// daemon serves the envelopes over HTTP under /api/v1/; the admin tool
// renders the same envelopes as text or JSON on stdout.
package management
