// Package logging builds the process-wide slog logger from the log_*
// configuration group and reopens the sink when that group changes on a
// reload.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pgexporter/pgexporter/internal/config"
)

// Controller owns the active log sink. Apply installs a new slog default
// logger for a configuration; Stop closes the current file sink, if any.
type Controller struct {
	mu   sync.Mutex
	file *rotatingFile
}

// Apply builds a handler for lc and installs it as the slog default. Any
// previously opened file sink is closed after the new one is in place.
func (c *Controller) Apply(lc config.LogConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := &slog.HandlerOptions{Level: level(lc.Level)}

	var handler slog.Handler
	var next *rotatingFile

	switch lc.Type {
	case "file":
		if lc.Path == "" {
			return fmt.Errorf("logging: log_type is file but log_path is empty")
		}
		f, err := openRotating(lc)
		if err != nil {
			return err
		}
		next = f
		handler = slog.NewJSONHandler(f, opts)
	default:
		// console and syslog both go to stderr; a dedicated syslog sink
		// is not worth a cgo dependency.
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))

	if c.file != nil {
		c.file.Close()
	}
	c.file = next
	return nil
}

// Stop closes the current file sink.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		c.file.Close()
		c.file = nil
	}
}

// level maps a configuration log level onto slog. The numbered debug
// levels all map to Debug; fatal maps to Error since slog has no fatal.
func level(s string) slog.Level {
	switch s {
	case "debug1", "debug2", "debug3", "debug4", "debug5":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error", "fatal":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// rotatingFile is a write-only log file that rotates by size and age. A
// rotation renames the current file with a timestamp suffix and reopens
// the original path.
type rotatingFile struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	size     int64
	maxSize  int64
	openedAt time.Time
	maxAge   time.Duration
}

func openRotating(lc config.LogConfig) (*rotatingFile, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if lc.Mode == "create" {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(lc.Path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", lc.Path, err)
	}

	size := int64(0)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &rotatingFile{
		f:        f,
		path:     lc.Path,
		size:     size,
		maxSize:  lc.RotationSize,
		openedAt: time.Now(),
		maxAge:   time.Duration(lc.RotationAge) * time.Second,
	}, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shouldRotate(len(p)) {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

func (r *rotatingFile) shouldRotate(pending int) bool {
	if r.maxSize > 0 && r.size+int64(pending) > r.maxSize {
		return true
	}
	if r.maxAge > 0 && time.Since(r.openedAt) > r.maxAge {
		return true
	}
	return false
}

func (r *rotatingFile) rotate() error {
	r.f.Close()

	rotated := fmt.Sprintf("%s.%s", r.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(r.path, rotated); err != nil {
		return fmt.Errorf("logging: rotate %s: %w", r.path, err)
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logging: reopen %s: %w", r.path, err)
	}

	r.f = f
	r.size = 0
	r.openedAt = time.Now()
	return nil
}
