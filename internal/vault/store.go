package vault

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// MaxEntries bounds the number of credentials per vault file.
const MaxEntries = 64

// Field length bounds for one stored entry. Longer fields mark the line
// as malformed.
const (
	MaxUsernameLength  = 128
	MaxEncryptedLength = 4096
)

var (
	// ErrUserExists is returned by AddUser for a duplicate username.
	ErrUserExists = errors.New("user already exists")

	// ErrUserNotFound is returned by UpdateUser and RemoveUser.
	ErrUserNotFound = errors.New("user not found")

	// ErrTooManyEntries is returned when a vault is at capacity.
	ErrTooManyEntries = errors.New("too many entries")

	// ErrNonASCIIPassword is returned for passwords containing bytes
	// outside the ASCII range, which the cipher pipeline does not accept.
	ErrNonASCIIPassword = errors.New("password must be ASCII")
)

// Entry is one stored credential: the username and the base64-encoded
// ciphertext of its password.
type Entry struct {
	Username  string
	Encrypted string
}

// ReadEntries parses a vault file. A missing file is an empty vault.
// Malformed lines are logged and skipped so a truncated trailing line
// cannot take the whole vault down.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vault: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		username, encrypted, ok := strings.Cut(line, ":")
		if !ok || username == "" || encrypted == "" ||
			len(username) > MaxUsernameLength || len(encrypted) > MaxEncryptedLength {
			slog.Warn("vault: skipping malformed entry", "path", path)
			continue
		}
		entries = append(entries, Entry{Username: username, Encrypted: encrypted})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}
	return entries, nil
}

// writeEntries replaces a vault file atomically: write to <path>.tmp, then
// rename over the original. The temporary file is removed on any failure.
func writeEntries(path string, entries []Entry) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("vault: create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		fmt.Fprintf(w, "%s:%s\n", e.Username, e.Encrypted)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("vault: write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vault: close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vault: rename %s: %w", tmp, err)
	}
	return nil
}

// AddUser appends a credential to the vault. Duplicate usernames, a full
// vault and non-ASCII passwords are rejected.
func AddUser(path, master, username, password string) error {
	if username == "" || len(username) > MaxUsernameLength {
		return fmt.Errorf("vault: invalid username %q", username)
	}
	if err := checkPassword(password); err != nil {
		return err
	}

	entries, err := ReadEntries(path)
	if err != nil {
		return err
	}
	if len(entries) >= MaxEntries {
		return fmt.Errorf("vault: %s: %w (max %d)", path, ErrTooManyEntries, MaxEntries)
	}
	for _, e := range entries {
		if e.Username == username {
			return fmt.Errorf("vault: %q: %w", username, ErrUserExists)
		}
	}

	encrypted, err := Encrypt(master, password)
	if err != nil {
		return err
	}
	entries = append(entries, Entry{Username: username, Encrypted: encrypted})
	return writeEntries(path, entries)
}

// UpdateUser re-encrypts the password of an existing credential.
func UpdateUser(path, master, username, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}

	entries, err := ReadEntries(path)
	if err != nil {
		return err
	}

	for i := range entries {
		if entries[i].Username != username {
			continue
		}
		encrypted, err := Encrypt(master, password)
		if err != nil {
			return err
		}
		entries[i].Encrypted = encrypted
		return writeEntries(path, entries)
	}
	return fmt.Errorf("vault: %q: %w", username, ErrUserNotFound)
}

// RemoveUser deletes a credential from the vault.
func RemoveUser(path, username string) error {
	entries, err := ReadEntries(path)
	if err != nil {
		return err
	}

	for i := range entries {
		if entries[i].Username == username {
			entries = append(entries[:i], entries[i+1:]...)
			return writeEntries(path, entries)
		}
	}
	return fmt.Errorf("vault: %q: %w", username, ErrUserNotFound)
}

// ListUsers returns the usernames stored in the vault, in file order.
// Passwords are never decrypted.
func ListUsers(path string) ([]string, error) {
	entries, err := ReadEntries(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Username)
	}
	return names, nil
}

func checkPassword(password string) error {
	if password == "" {
		return fmt.Errorf("vault: empty password")
	}
	for i := 0; i < len(password); i++ {
		if password[i] > 0x7f {
			return ErrNonASCIIPassword
		}
	}
	return nil
}
