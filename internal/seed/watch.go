package seed

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Watch re-applies path whenever it is written or recreated, until ctx is done.
// The parent directory is watched so editors that replace the file are handled.
func (i *Importer) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "creating seed watcher")
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return eris.Wrapf(err, "watching seed directory for %s", target)
	}

	fields := logrus.Fields{"component": "seed.watcher", "path": target}
	if i.logger != nil {
		i.logger.WithFields(fields).Info("watching seed file")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if _, err := i.ApplyFile(ctx, target); err != nil && i.logger != nil {
				i.logger.WithFields(fields).WithField("error", err.Error()).Error("re-applying seed file failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if i.logger != nil {
				i.logger.WithFields(fields).WithField("error", err.Error()).Warn("seed watcher error")
			}
		}
	}
}
