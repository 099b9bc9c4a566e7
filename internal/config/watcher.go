package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// PolicySource hands out the current policy. Callers take one snapshot per
// request so a reload never changes policy halfway through a login.
type PolicySource interface {
	Policy() *Policy
}

// StaticPolicy is a PolicySource that never changes.
type StaticPolicy struct {
	p *Policy
}

// NewStaticPolicy wraps p.
func NewStaticPolicy(p *Policy) *StaticPolicy {
	return &StaticPolicy{p: p}
}

func (s *StaticPolicy) Policy() *Policy { return s.p }

// PolicyWatcher reloads the policy file whenever it changes on disk. A file
// that fails to parse or validate is logged and the previous policy is kept.
type PolicyWatcher struct {
	path    string
	current atomic.Pointer[Policy]
	logger  logrus.FieldLogger
	watcher *fsnotify.Watcher

	// reloaded is signalled after every reload attempt; used by tests.
	reloaded chan error
}

// NewPolicyWatcher loads path once and prepares to watch it.
func NewPolicyWatcher(path string, logger logrus.FieldLogger) (*PolicyWatcher, error) {
	p, err := LoadPolicy(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy watcher: %w", err)
	}
	// Watch the directory: editors and config-map mounts replace files by
	// rename, which drops a watch placed on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	pw := &PolicyWatcher{
		path:     filepath.Clean(path),
		logger:   logger,
		watcher:  w,
		reloaded: make(chan error, 1),
	}
	pw.current.Store(p)
	return pw, nil
}

// Policy returns the most recently loaded valid policy.
func (w *PolicyWatcher) Policy() *Policy {
	return w.current.Load()
}

// Run processes file events until ctx is done.
func (w *PolicyWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("[Policy] watcher error")
		}
	}
}

func (w *PolicyWatcher) reload() {
	p, err := LoadPolicy(w.path)
	if err != nil {
		w.logger.WithError(err).Error("[Policy] reload failed, keeping previous policy")
	} else {
		w.current.Store(p)
		w.logger.WithField("domains", len(p.DomainServers)).Info("[Policy] reloaded")
	}

	// Non-blocking: only the latest outcome matters.
	select {
	case <-w.reloaded:
	default:
	}
	w.reloaded <- err
}
