package fgblock

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	fsnotify "gopkg.in/fsnotify.v1"
)

const watchSettleTime = 500 * time.Millisecond

// WatchFiles calls onChange whenever one of files is written or replaced. The directories
// of the files are watched, so editors that replace files on save are noticed as well.
// Bursts of events for the same file are reported once. The watcher stops when ctx is done.
func WatchFiles(ctx context.Context, files []string, onChange func(filename string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return err
		}
		watched[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
		dirs[dir] = true
	}

	var (
		mutex  sync.Mutex
		timers = make(map[string]*time.Timer)
	)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				log.Infof("file watcher exiting")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || !watched[name] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				log.Tracef("%s: %s", event.Op, name)

				mutex.Lock()
				if t, ok := timers[name]; ok {
					t.Stop()
				}
				timers[name] = time.AfterFunc(watchSettleTime, func() {
					mutex.Lock()
					delete(timers, name)
					mutex.Unlock()

					if ctx.Err() == nil {
						onChange(name)
					}
				})
				mutex.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("file watcher error event: %s", err)
			}
		}
	}()

	return nil
}
