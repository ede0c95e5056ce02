package assets

import (
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay unchanged before it is reported;
// most editors write a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports tree files that changed on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	Events   chan string
	Errors   chan error
	closeCh  chan struct{}
	done     chan struct{}
	once     sync.Once
	debounce time.Duration
}

func NewWatcher(debounce time.Duration, dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher:  w,
		Events:   make(chan string, 16),
		Errors:   make(chan error, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
		debounce: debounce,
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
		close(w.Events)
		close(w.Errors)
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	// Files are reported once they have been quiet for the debounce window.
	pending := make(map[string]time.Time)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsTreeFile(event.Name) {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[event.Name] = time.Now().Add(w.debounce)
		case <-timer.C:
			now := time.Now()
			var due []string
			next := time.Duration(0)
			for name, at := range pending {
				if wait := at.Sub(now); wait > 0 {
					if next == 0 || wait < next {
						next = wait
					}
					continue
				}
				due = append(due, name)
			}
			sort.Strings(due)
			for _, name := range due {
				delete(pending, name)
				select {
				case w.Events <- name:
				case <-w.closeCh:
					return
				}
			}
			if len(pending) > 0 {
				timer.Reset(next)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}
