package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"catalogscan/pkg/logger"
	"catalogscan/process/extract"
)

// Watcher appends page images dropped into Dir to one open run. Files are
// taken in arrival order, or lexical order for those already present. The
// run's checkpoint lists the files already committed, so a restart skips
// exactly those.
type Watcher struct {
	Dir    string
	Mode   string
	Runner *extract.Runner
	// Rescan is a cron spec for full directory rescans, e.g. "@every 1m".
	// Empty disables rescans.
	Rescan string
	// Stable is how long a file must go without changes before it is read.
	Stable time.Duration
}

func (w *Watcher) stable() time.Duration {
	if w.Stable <= 0 {
		return 300 * time.Millisecond
	}
	return w.Stable
}

// Run blocks until ctx is cancelled. The run is never marked completed, so
// the next watch or run on the same input continues it.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.WithComponent("watch")
	st, err := w.Runner.Begin(ctx, 0)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, name := range st.Files {
		seen[name] = true
	}
	existing := scan(w.Dir)
	if len(st.Files) == 0 && st.LastCompletedPage > 0 {
		// checkpoints written without a file list: assume lexical order
		log.Warn().Str("run", st.Name).Int("done", st.LastCompletedPage).
			Msg("checkpoint has no file list; treating the first files in name order as done")
		for i, name := range existing {
			if i < st.LastCompletedPage {
				seen[name] = true
			}
		}
	}

	fileCh := make(chan string, 256)
	rescanCh := make(chan []string, 1)
	go w.debounce(ctx, fw.Events, fw.Errors, rescanCh, fileCh)

	if w.Rescan != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.Rescan, func() {
			select {
			case rescanCh <- scan(w.Dir):
			default: // previous rescan still queued
			}
		}); err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
	}

	log.Info().Str("dir", w.Dir).Str("run", st.Name).Int("done", st.LastCompletedPage).Msg("watching (debounced)")

	process := func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		page := extract.FilePage(st.LastCompletedPage+1, filepath.Join(w.Dir, name), w.Mode)
		st.TotalPages = page.Number
		return w.Runner.Step(ctx, st, page)
	}

	// files already settled are taken now, the rest once they stop changing
	var unsettled []string
	for _, name := range existing {
		if seen[name] {
			continue
		}
		if !w.settled(name) {
			unsettled = append(unsettled, name)
			continue
		}
		if err := process(name); err != nil {
			return stopErr(err)
		}
	}
	if len(unsettled) > 0 {
		select {
		case rescanCh <- unsettled:
		case <-ctx.Done():
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Int("pages", st.LastCompletedPage).Int("products", st.ProductCount).Msg("watch stopped")
			return nil
		case name := <-fileCh:
			if err := process(name); err != nil {
				return stopErr(err)
			}
		}
	}
}

func (w *Watcher) settled(name string) bool {
	info, err := os.Stat(filepath.Join(w.Dir, name))
	return err == nil && time.Since(info.ModTime()) > w.stable()
}

func stopErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type pendingFile struct {
	changed time.Time
	size    int64
}

// debounce forwards a file once nothing has touched it for w.Stable. Names
// come from fsnotify events and from rescans; both wait out the same quiet
// period, and a file whose size or modification time moves starts over.
func (w *Watcher) debounce(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, rescan <-chan []string, out chan<- string) {
	log := logger.WithComponent("watch")
	stable := w.stable()
	pending := map[string]pendingFile{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !extract.IsSupportedExt(name) {
				continue
			}
			p := pendingFile{changed: time.Now(), size: -1}
			if info, err := os.Stat(ev.Name); err == nil {
				p.size = info.Size()
			}
			pending[name] = p
		case names := <-rescan:
			for _, name := range names {
				if _, ok := pending[name]; ok {
					continue
				}
				info, err := os.Stat(filepath.Join(w.Dir, name))
				if err != nil {
					continue
				}
				pending[name] = pendingFile{changed: info.ModTime(), size: info.Size()}
			}
		case <-ticker.C:
			now := time.Now()
			var ready []string
			for name, p := range pending {
				info, err := os.Stat(filepath.Join(w.Dir, name))
				if err != nil {
					delete(pending, name)
					continue
				}
				if info.Size() != p.size {
					p = pendingFile{changed: now, size: info.Size()}
				} else if info.ModTime().After(p.changed) {
					p.changed = info.ModTime()
				}
				pending[name] = p
				if now.Sub(p.changed) > stable {
					ready = append(ready, name)
				}
			}
			sort.Strings(ready)
			for _, name := range ready {
				delete(pending, name)
				select {
				case out <- name:
				case <-ctx.Done():
					return
				}
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}

func scan(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !extract.IsSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}
