// Package contentwatch re-imports the content directory when files in it
// change.
package contentwatch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dfryer1193/sitecounts/blog/application"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const DefaultDebounce = 500 * time.Millisecond

type Importer interface {
	ImportDir(ctx context.Context, fsys fs.FS) (application.ImportResult, error)
}

type Watcher struct {
	dir      string
	importer Importer
	debounce time.Duration
}

func New(dir string, importer Importer, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		importer: importer,
		debounce: debounce,
	}
}

// Run watches the directory tree until ctx is cancelled. Bursts of events
// collapse into one import once the tree has been quiet for the debounce
// period.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := addTree(fw, w.dir); err != nil {
		return err
	}
	log.Info().Str("dir", w.dir).Msg("Watching content for changes")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := addTree(fw, event.Name); err != nil {
					log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
				}
			}

			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Content changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")

		case <-fire:
			fire = nil
			if _, err := w.importer.ImportDir(ctx, os.DirFS(w.dir)); err != nil {
				log.Error().Err(err).Str("dir", w.dir).Msg("Failed to re-import content")
			}
		}
	}
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
