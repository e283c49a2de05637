package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/qzeleza/chargerman/internal/logger"
)

// Watch runs an fsnotify watcher on the config file in the caller's
// goroutine, sending a freshly reloaded Description to updates every
// time the file is written. It returns once stop is closed or the
// watcher fails to start.
func (m *Manager) Watch(updates chan<- *Description, stop <-chan struct{}, log *logger.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error(fmt.Sprintf("config watch: could not create fsnotify watcher: %v", err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(m.path); err != nil {
		log.Error(fmt.Sprintf("config watch: could not watch %s: %v", m.path, err))
		return
	}
	log.Info(fmt.Sprintf("config watch: watching %s", m.path))

	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			// Give the writer (an editor doing save-as-rename, or our
			// own atomic Save) a moment to finish before reloading.
			time.Sleep(100 * time.Millisecond)
			cfg, err := m.Load()
			if err != nil {
				log.Error(fmt.Sprintf("config watch: reload failed: %v", err))
				continue
			}
			updates <- cfg
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error(fmt.Sprintf("config watch: watcher error: %v", err))
		}
	}
}
