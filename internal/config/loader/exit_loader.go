// Package loader watches the optional exit-rules file and republishes a
// read-only snapshot whenever it changes, so exit thresholds can be tuned on
// a running bot without a restart.
package loader

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"quantbot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ExitParams is the hot-reloadable subset of exit configuration.
type ExitParams struct {
	TakeProfitMult float64 `mapstructure:"takeprofit_mult"`
	TrailingDD     float64 `mapstructure:"trailing_dd"`
}

func (p ExitParams) valid() error {
	if p.TakeProfitMult <= 1 {
		return fmt.Errorf("takeprofit_mult must be > 1, got %v", p.TakeProfitMult)
	}
	if p.TrailingDD <= 0 || p.TrailingDD >= 1 {
		return fmt.Errorf("trailing_dd must be in (0,1), got %v", p.TrailingDD)
	}
	return nil
}

// ExitSnapshot is the read-only view handed to subscribers.
type ExitSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Params   ExitParams
}

// ExitLoader loads the exit-rules YAML and notifies subscribers on change.
// A file that fails to parse or validate keeps the previous snapshot; the
// running bot never picks up half-written parameters.
type ExitLoader struct {
	path string

	mu       sync.RWMutex
	snapshot ExitSnapshot
	subs     []func(ExitSnapshot)

	watcher *fsnotify.Watcher
	closeCh chan struct{}
}

// NewExitLoader seeds the loader with the startup parameters. If path is
// empty the loader is static: Snapshot keeps returning the seed values.
func NewExitLoader(path string, seed ExitParams) *ExitLoader {
	return &ExitLoader{
		path: path,
		snapshot: ExitSnapshot{
			Version:  1,
			LoadedAt: time.Now(),
			Params:   seed,
		},
		closeCh: make(chan struct{}),
	}
}

// Snapshot returns the current parameters.
func (l *ExitLoader) Snapshot() ExitSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Subscribe registers a callback invoked with every accepted reload. The
// callback also fires once immediately with the current snapshot.
func (l *ExitLoader) Subscribe(fn func(ExitSnapshot)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.subs = append(l.subs, fn)
	snap := l.snapshot
	l.mu.Unlock()
	fn(snap)
}

// Start loads the file once and begins watching it. No-op without a path.
func (l *ExitLoader) Start() error {
	if l.path == "" {
		return nil
	}
	if err := l.reload(); err != nil {
		return fmt.Errorf("loading exit rules failed (%s): %w", l.path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.watcher = watcher
	// Watch the directory: editors replace files by rename, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return err
	}
	go l.watchLoop()
	return nil
}

// Close stops the watcher.
func (l *ExitLoader) Close() {
	close(l.closeCh)
	if l.watcher != nil {
		l.watcher.Close()
	}
}

func (l *ExitLoader) watchLoop() {
	var debounce *time.Timer
	target := filepath.Clean(l.path)
	for {
		select {
		case <-l.closeCh:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				if err := l.reload(); err != nil {
					logger.Warnf("exit rules reload rejected, keeping previous: %v", err)
				}
			})
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("exit rules watcher error: %v", err)
		}
	}
}

func (l *ExitLoader) reload() error {
	v := viper.New()
	v.SetConfigFile(l.path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	var params ExitParams
	if err := v.Unmarshal(&params); err != nil {
		return err
	}
	if err := params.valid(); err != nil {
		return err
	}
	l.mu.Lock()
	l.snapshot = ExitSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Params:   params,
	}
	snap := l.snapshot
	subs := append(([]func(ExitSnapshot))(nil), l.subs...)
	l.mu.Unlock()
	logger.Infof("exit rules reloaded version=%d takeprofit_mult=%.3f trailing_dd=%.3f",
		snap.Version, params.TakeProfitMult, params.TrailingDD)
	for _, fn := range subs {
		fn(snap)
	}
	return nil
}
