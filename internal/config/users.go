package config

import (
	"fmt"

	"github.com/pgexporter/pgexporter/internal/vault"
)

// ReadUsers loads and decrypts the users vault file into cfg. An empty
// path leaves the user set empty; ValidateUsers then rejects the record,
// so the missing vault surfaces as a validation failure rather than a
// read error.
func ReadUsers(cfg *Config, path string) error {
	users, err := readVault(path, MaxUsers)
	if err != nil {
		return fmt.Errorf("config: users %s: %w", path, err)
	}
	cfg.Users = users
	cfg.UsersPath = path
	return nil
}

// ReadAdmins loads and decrypts the admins vault file into cfg.
func ReadAdmins(cfg *Config, path string) error {
	admins, err := readVault(path, MaxAdmins)
	if err != nil {
		return fmt.Errorf("config: admins %s: %w", path, err)
	}
	cfg.Admins = admins
	cfg.AdminsPath = path
	return nil
}

func readVault(path string, capacity int) ([]User, error) {
	if path == "" {
		return nil, nil
	}

	master, err := vault.MasterKey()
	if err != nil {
		return nil, err
	}

	entries, err := vault.ReadEntries(path)
	if err != nil {
		return nil, err
	}
	if len(entries) > capacity {
		return nil, fmt.Errorf("%w (max %d)", ErrCapacity, capacity)
	}

	users := make([]User, 0, len(entries))
	for _, e := range entries {
		password, err := vault.Decrypt(master, e.Encrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt %q: %w", e.Username, err)
		}
		users = append(users, User{Username: e.Username, Password: password})
	}
	return users, nil
}
