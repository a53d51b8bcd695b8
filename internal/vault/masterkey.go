package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MinMasterKeyLength is the minimum number of characters accepted for a
// master key.
const MinMasterKeyLength = 8

// ErrMasterKeyExists is returned by SaveMasterKey when a key file is
// already present. The existing key protects existing vaults, so it is
// never overwritten.
var ErrMasterKeyExists = errors.New("master key already exists")

// MasterKeyPath returns the location of the master key file,
// ~/.pgexporter/master.key.
func MasterKeyPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("vault: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".pgexporter", "master.key"), nil
}

// MasterKey reads and decodes the stored master key.
func MasterKey() (string, error) {
	path, err := MasterKeyPath()
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("vault: read master key: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return "", fmt.Errorf("vault: decode master key: %w", err)
	}
	return string(key), nil
}

// SaveMasterKey validates and stores a new master key. The parent
// directory is created with 0700 and the file with 0600; an existing key
// file fails with ErrMasterKeyExists.
func SaveMasterKey(key string) error {
	if err := CheckMasterKey(key); err != nil {
		return err
	}

	path, err := MasterKeyPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("vault: %s: %w", path, ErrMasterKeyExists)
	}

	// A pre-existing key directory must be owner-only. Writing the key
	// into a directory with group or other bits would expose it.
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("vault: %s is not a directory", dir)
		}
		if perm := info.Mode().Perm(); perm != 0o700 {
			return fmt.Errorf("vault: %s has mode %04o, want 0700", dir, perm)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("vault: stat %s: %w", dir, err)
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vault: create %s: %w", dir, err)
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(key))
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("vault: write master key: %w", err)
	}
	return nil
}

// CheckMasterKey enforces the key rules: at least MinMasterKeyLength
// characters, printable ASCII only.
func CheckMasterKey(key string) error {
	if len(key) < MinMasterKeyLength {
		return fmt.Errorf("vault: master key must be at least %d characters", MinMasterKeyLength)
	}
	for _, r := range key {
		if r < '!' || r > '~' {
			return fmt.Errorf("vault: master key must contain only printable ASCII characters")
		}
	}
	return nil
}
