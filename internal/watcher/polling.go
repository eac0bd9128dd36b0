package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// poller finds changes by rescanning the tree on an interval. It is used
// where fsnotify is unavailable, such as some network mounts.
type poller struct {
	root     string
	interval time.Duration
	seen     map[string]fileStamp
}

type fileStamp struct {
	mod  time.Time
	size int64
}

// newPoller records the current tree as the baseline, so only later
// changes are reported.
func newPoller(root string, interval time.Duration) (*poller, error) {
	p := &poller{root: root, interval: interval}
	seen, err := p.scan()
	if err != nil {
		return nil, fmt.Errorf("initial scan of %s: %w", root, err)
	}
	p.seen = seen
	return p, nil
}

// run polls until ctx is done or stop is closed.
func (p *poller) run(ctx context.Context, stop <-chan struct{}, report func(FileEvent), fail func(error)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := p.poll(report); err != nil {
				fail(err)
			}
		}
	}
}

// poll reports files that appeared, changed size or mtime, or vanished
// since the previous scan.
func (p *poller) poll(report func(FileEvent)) error {
	current, err := p.scan()
	if err != nil {
		return fmt.Errorf("rescan %s: %w", p.root, err)
	}

	now := time.Now()
	for path, stamp := range current {
		prev, ok := p.seen[path]
		if !ok {
			report(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		} else if !prev.mod.Equal(stamp.mod) || prev.size != stamp.size {
			report(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range p.seen {
		if _, ok := current[path]; !ok {
			report(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}
	p.seen = current
	return nil
}

func (p *poller) scan() (map[string]fileStamp, error) {
	files := make(map[string]fileStamp)
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return nil
		case d.IsDir() && path != p.root && skipDir(d.Name()):
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}
		if info, err := d.Info(); err == nil {
			files[path] = fileStamp{mod: info.ModTime(), size: info.Size()}
		}
		return nil
	})
	return files, err
}
