package indexer

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/phuslu/log"
)

// ChangeType is the kind of change observed on a learning file
type ChangeType string

const (
	ChangeUpserted ChangeType = "upserted"
	ChangeDeleted  ChangeType = "deleted"
)

// Change is a learning file that must be re-indexed or removed
type Change struct {
	Type ChangeType
	Path string
}

// Watch watches every discovered learnings directory and emits a Change per
// relevant file event. New subdirectories are watched as they appear. The
// channel is closed when ctx is done or the watcher fails.
func (idx *Indexer) Watch(ctx context.Context) (<-chan Change, error) {
	discovery, err := Discover(idx.cfg.GlobalDir, idx.cfg.RepoSearchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to discover learning directories: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range discovery.Dirs {
		if err := watcher.Add(dir); err != nil {
			log.Warn().Str("dir", dir).Err(err).Msg("failed to watch directory")
		}
	}
	log.Info().Int("dirs", len(watcher.WatchList())).Msg("watching learnings")

	changes := make(chan Change)
	go func() {
		defer close(changes)
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && isDir(event.Name) {
					if err := watcher.Add(event.Name); err != nil {
						log.Warn().Str("dir", event.Name).Err(err).Msg("failed to watch directory")
					}
					continue
				}
				change, ok := handleFsEvent(event)
				if !ok {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("watcher error")
			}
		}
	}()

	return changes, nil
}

// handleFsEvent maps a file event onto a Change. Directories, hidden files,
// non-markdown files and permission changes are ignored.
func handleFsEvent(event fsnotify.Event) (Change, bool) {
	if !IsLearningFile(event.Name) {
		return Change{}, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Type: ChangeDeleted, Path: event.Name}, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
			return Change{}, false
		}
		return Change{Type: ChangeUpserted, Path: event.Name}, true
	}
	return Change{}, false
}

// Apply re-indexes or removes the learning behind a change
func (idx *Indexer) Apply(ctx context.Context, change Change) error {
	switch change.Type {
	case ChangeDeleted:
		return idx.RemoveFile(ctx, change.Path)
	default:
		_, err := idx.IndexFile(ctx, change.Path)
		return err
	}
}
