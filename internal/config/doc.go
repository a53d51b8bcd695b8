// Package config owns the pgexporter configuration lifecycle: the INI-like
// main file, the encrypted users/admins vaults, validation, live reload and
// single-key mutation.
//
// Top-level pieces:
//   - Config — the full typed record: global settings, per-server sections,
//     decrypted users/admins, bridge endpoints and metric definitions
//   - New() — defaults as applied before any file is read
//   - ReadConfiguration(cfg, path) — parses the main file; unknown keys are
//     logged and skipped, duplicate server names abort the load
//   - Validate / ValidateUsers / ValidateAdmins — cross-field invariants run
//     on every candidate before adoption
//   - ParseKey — the dotted key grammar (key, pgexporter.key,
//     server.<name>.<key>) shared by conf get and conf set
//   - State — holds the live *Config behind a RWMutex; Reload and Set build
//     a validated candidate and adopt it by pointer swap, so readers never
//     observe a half-applied record
//
// Watch(ctx, onRestart) uses fsnotify to reload when the main file changes,
// handling the rename→create pattern used by atomic-save editors.
package config
