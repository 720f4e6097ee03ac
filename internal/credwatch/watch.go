// Package credwatch watches an OAuth token file on disk and invokes a
// callback whenever it changes, so a long-lived client can refresh its
// credentials without a restart.
package credwatch

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs the burst of Write/Create events a single token
// rotation (truncate-then-write, or write-to-temp-then-rename) produces.
const debounce = 250 * time.Millisecond

// Watcher reloads a token file on change and reports the trimmed
// contents to OnChange. Build one with Watch; stop it with Close.
type Watcher struct {
	w        *fsnotify.Watcher
	OnChange func(token string)
}

// Watch starts watching path and returns a Watcher whose OnChange
// callback fires (on its own goroutine) every time the file's contents
// change, debounced to one call per burst of filesystem events. The
// initial contents are read and reported once before watching begins.
func Watch(path string, onChange func(token string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	watcher := &Watcher{w: w, OnChange: onChange}

	if token, err := readToken(path); err == nil {
		onChange(token)
	} else {
		slog.Error("credwatch: initial read failed", "path", path, "err", err)
	}

	go watcher.run(path)
	return watcher, nil
}

func (watcher *Watcher) run(path string) {
	defer watcher.w.Close()
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	for {
		select {
		case ev, ok := <-watcher.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if err := watcher.w.Add(ev.Name); err != nil {
					slog.Error("credwatch: re-add after rename/remove failed", "path", ev.Name, "err", err)
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
				debounceTimer.Reset(debounce)
			}
		case <-debounceTimer.C:
			token, err := readToken(path)
			if err != nil {
				slog.Error("credwatch: token reload failed", "path", path, "err", err)
				continue
			}
			watcher.OnChange(token)
		case err, ok := <-watcher.w.Errors:
			if !ok {
				return
			}
			slog.Error("credwatch: watch error", "err", err)
		}
	}
}

// Close stops the watcher. It does not block for the background
// goroutine to exit; the goroutine exits on its own once fsnotify's
// channels close.
func (watcher *Watcher) Close() error {
	return watcher.w.Close()
}

func readToken(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
