// Package blocklist holds the set of origin hosts the proxy refuses to
// fetch from, adapted from the reference proxy's ProxyState.BlockedHosts and
// extended with a file watcher so edits on disk take effect without a
// restart.
package blocklist

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// List is the proxy's shared, concurrency-safe host denylist.
type List struct {
	mu    sync.RWMutex
	hosts map[string]bool
	path  string
	log   zerolog.Logger
}

// New returns an empty list that will persist to and reload from path.
func New(path string, log zerolog.Logger) *List {
	return &List{hosts: make(map[string]bool), path: path, log: log}
}

// Load reads the blocklist from disk. A missing file is not an error — the
// list simply starts empty, matching the reference proxy's "No blocked list
// found, starting fresh" behavior.
func (l *List) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var hosts map[string]bool
	if err := json.Unmarshal(data, &hosts); err != nil {
		return err
	}
	l.mu.Lock()
	l.hosts = hosts
	l.mu.Unlock()
	return nil
}

// Save persists the current list to disk as indented JSON.
func (l *List) Save() error {
	l.mu.RLock()
	data, err := json.MarshalIndent(l.hosts, "", "  ")
	l.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}

// Block adds host to the list and persists the change.
func (l *List) Block(host string) {
	l.mu.Lock()
	l.hosts[strings.ToLower(host)] = true
	l.mu.Unlock()
	if err := l.Save(); err != nil {
		l.log.Warn().Err(err).Msg("failed to persist blocklist")
	}
}

// Unblock removes host from the list and persists the change.
func (l *List) Unblock(host string) {
	l.mu.Lock()
	delete(l.hosts, strings.ToLower(host))
	l.mu.Unlock()
	if err := l.Save(); err != nil {
		l.log.Warn().Err(err).Msg("failed to persist blocklist")
	}
}

// IsBlocked reports whether host or one of its parent domains is blocked
// (blocking "example.com" also blocks "www.example.com").
func (l *List) IsBlocked(host string) bool {
	host = strings.ToLower(host)
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.hosts[host] {
		return true
	}
	for blocked := range l.hosts {
		if strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// Hosts returns a snapshot of the blocked hosts, for the admin dashboard.
func (l *List) Hosts() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.hosts))
	for h := range l.hosts {
		out = append(out, h)
	}
	return out
}

// Watch reloads the list whenever path changes on disk, until stop is
// closed. Grounded on mercator-hq-jupiter's policy file watcher: one
// fsnotify.Watcher per list, debounced only by fsnotify's own event
// coalescing since reload here is cheap (a JSON unmarshal).
func (l *List) Watch(stop <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.log.Warn().Err(err).Msg("blocklist watcher unavailable")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(l.path); err != nil {
		// The file may not exist yet; that's fine, Block/Unblock will
		// create it and a restart will pick up watching it.
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := l.Load(); err != nil {
					l.log.Warn().Err(err).Msg("failed to reload blocklist")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.log.Warn().Err(err).Msg("blocklist watcher error")
		case <-stop:
			return
		}
	}
}
