// Package debug is a category-tagged file logger. The frame path runs at
// 30+ FPS, so logging stays off unless explicitly enabled and hot-path
// callers should use LogEvery.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
	counts  = make(map[string]int)
)

// Enable starts logging to ~/.config/synesthetica/debug.log, truncating any
// previous session's log.
func Enable() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return EnableAt(filepath.Join(home, ".config", "synesthetica", "debug.log"))
}

// EnableAt starts logging to an explicit path.
func EnableAt(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	file = f
	enabled = true
	write("debug", "=== logging started ===")
	return nil
}

// Disable stops logging and closes the file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Log writes one tagged line. No-op unless enabled.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	write(category, format, args...)
}

// LogEvery writes only every nth call with the same category+format.
// Use for per-frame events.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	key := category + "|" + format
	counts[key]++
	if counts[key]%n == 0 {
		write(category, format, args...)
	}
}

// write assumes mu is held.
func write(category, format string, args ...any) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, category, fmt.Sprintf(format, args...))
	file.Sync() // flush so the tail survives a crash
}
