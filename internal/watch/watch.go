// Package watch licenses files dropped into a watched folder.
//
// New files get the configured default license embedded once they stop
// changing, then move to a licensed/ subdirectory alongside any sidecar.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"artiquity/internal/config"
	"artiquity/internal/embedder"
	"artiquity/internal/fileutil"
	"artiquity/internal/licensing"
	"artiquity/internal/logging"
	"artiquity/internal/notifications"
)

const licensedDirName = "licensed"

// Watcher monitors the drop folder and licenses settled files.
type Watcher struct {
	dir         string
	licensedDir string
	settle      time.Duration
	licensing   *licensing.Service
	notifier    notifications.Service
	logger      *slog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	busy    map[string]bool
	closed  bool
	done    chan struct{}
}

// New constructs a watcher from the watch configuration.
func New(cfg *config.Config, lic *licensing.Service, notifier notifications.Service, logger *slog.Logger) (*Watcher, error) {
	if !cfg.Watch.Enabled {
		return nil, errors.New("watch: not enabled")
	}
	dir := strings.TrimSpace(cfg.Watch.Dir)
	if dir == "" {
		return nil, errors.New("watch: directory not configured")
	}
	settle := time.Duration(cfg.Watch.SettleSeconds) * time.Second
	if settle <= 0 {
		settle = 2 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	} else {
		logger = logging.WithComponent(logger, "watch")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Watcher{
		dir:         dir,
		licensedDir: filepath.Join(dir, licensedDirName),
		settle:      settle,
		licensing:   lic,
		notifier:    notifier,
		logger:      logger,
		pending:     make(map[string]*time.Timer),
		busy:        make(map[string]bool),
		done:        make(chan struct{}),
	}, nil
}

// Start begins watching. It returns once the watcher is registered; event
// handling runs in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.licensedDir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	// License anything already sitting in the folder.
	if entries, err := os.ReadDir(w.dir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			w.schedule(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	go w.loop(ctx)
	w.logger.Info("watch folder active",
		logging.String("dir", w.dir),
		logging.Duration("settle", w.settle))
	return nil
}

// Stop halts event handling and cancels pending settle timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	if w.watcher == nil {
		return
	}
	_ = w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// schedule (re)arms the settle timer for a path. Every write postpones
// processing so half-copied files are left alone.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.eligible(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.busy[path] {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	})
}

func (w *Watcher) eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if strings.HasSuffix(base, ".rsl.xml") {
		return false
	}
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return true
}

func (w *Watcher) process(ctx context.Context, path string) {
	w.mu.Lock()
	w.busy[path] = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.busy, path)
		w.mu.Unlock()
	}()

	lic, err := w.licensing.Build(licensing.Request{})
	if err != nil {
		w.logger.Error("build default license", logging.Error(err))
		return
	}
	outcome, err := w.licensing.EmbedFile(ctx, path, lic)
	if err != nil {
		w.logger.Warn("license watch file",
			logging.String("file", path),
			logging.Error(err))
		if notifyErr := w.notifier.NotifyError(ctx, err, "watch folder"); notifyErr != nil {
			w.logger.Warn("watch error notification failed", logging.Error(notifyErr))
		}
		return
	}

	base := filepath.Base(path)
	dest := filepath.Join(w.licensedDir, base)
	if err := fileutil.MoveFile(path, dest); err != nil {
		w.logger.Warn("move licensed file", logging.String("file", path), logging.Error(err))
		return
	}
	if outcome.Sidecar {
		sidecar := embedder.SidecarPath(path)
		if err := fileutil.MoveFile(sidecar, embedder.SidecarPath(dest)); err != nil {
			w.logger.Warn("move sidecar", logging.String("file", sidecar), logging.Error(err))
		}
	}

	w.logger.Info("watch file licensed",
		logging.String("file", base),
		logging.String("license_id", outcome.License.ID),
		logging.Bool("sidecar", outcome.Sidecar))
	if err := w.notifier.NotifyWatchProcessed(ctx, base); err != nil {
		w.logger.Warn("watch notification failed", logging.Error(err))
	}
}
