package watch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"catalogscan/models"
	"catalogscan/process/extract"
	"catalogscan/process/progress"
)

type recordingProcessor struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingProcessor) ProcessPage(ctx context.Context, page extract.Page) models.PageResult {
	r.mu.Lock()
	r.names = append(r.names, filepath.Base(page.Path))
	r.mu.Unlock()
	return models.PageResult{Page: page.Number, Source: page.Source(), Products: []models.Product{
		{Name: page.Label, Price: 100, Source: page.Source()},
	}}
}

func (r *recordingProcessor) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("not really a png"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// touchOld writes a file that looks like it settled an hour ago.
func touchOld(t *testing.T, dir, name string) {
	t.Helper()
	touch(t, dir, name)
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, name), old, old); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherProcessesExistingThenNewFiles(t *testing.T) {
	inbox, out := t.TempDir(), t.TempDir()
	touchOld(t, inbox, "b.png")
	touchOld(t, inbox, "a.png")
	touchOld(t, inbox, "readme.txt")

	proc := &recordingProcessor{}
	store := progress.NewStore(out, models.ModeTemplate, nil)
	w := &Watcher{
		Dir:    inbox,
		Mode:   models.ModeTemplate,
		Runner: &extract.Runner{Processor: proc, Store: store, Input: inbox},
		Rescan: "@every 1s",
		Stable: 50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return len(proc.seen()) == 2 })
	touch(t, inbox, "c.png")
	waitFor(t, committed(store, inbox, 3))
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := proc.seen(); !reflect.DeepEqual(got, []string{"a.png", "b.png", "c.png"}) {
		t.Fatalf("unexpected processing order %v", got)
	}
	st, err := store.Checkpoints.Latest(context.Background(), inbox)
	if err != nil || st == nil {
		t.Fatalf("latest: %v %v", st, err)
	}
	if st.LastCompletedPage != 3 || st.Completed || st.Products[2].Source != "Page 3 - c.png" {
		t.Fatalf("unexpected state %+v", st)
	}

	// a restarted watcher skips the files listed in the checkpoint
	proc2 := &recordingProcessor{}
	w.Runner = &extract.Runner{Processor: proc2, Store: store, Input: inbox}
	ctx2, cancel2 := context.WithCancel(context.Background())
	go func() { done <- w.Run(ctx2) }()
	touch(t, inbox, "d.png")
	waitFor(t, committed(store, inbox, 4))
	cancel2()
	if err := <-done; err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := proc2.seen(); !reflect.DeepEqual(got, []string{"d.png"}) {
		t.Fatalf("restart reprocessed %v", got)
	}
}

func TestWatcherRestartUsesCommittedFiles(t *testing.T) {
	inbox, out := t.TempDir(), t.TempDir()
	store := progress.NewStore(out, models.ModeTemplate, nil)
	newWatcher := func(proc *recordingProcessor) *Watcher {
		return &Watcher{
			Dir:    inbox,
			Mode:   models.ModeTemplate,
			Runner: &extract.Runner{Processor: proc, Store: store, Input: inbox},
			Rescan: "@every 1s",
			Stable: 50 * time.Millisecond,
		}
	}

	first := &recordingProcessor{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newWatcher(first).Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	touch(t, inbox, "c.png")
	waitFor(t, committed(store, inbox, 1))
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	// dropped while nobody was watching; sorts before c.png
	touch(t, inbox, "a.png")

	second := &recordingProcessor{}
	ctx2, cancel2 := context.WithCancel(context.Background())
	go func() { done <- newWatcher(second).Run(ctx2) }()
	waitFor(t, committed(store, inbox, 2))
	cancel2()
	if err := <-done; err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := second.seen(); !reflect.DeepEqual(got, []string{"a.png"}) {
		t.Fatalf("restart processed %v, want [a.png]", got)
	}
	st, err := store.Checkpoints.Latest(context.Background(), inbox)
	if err != nil || st == nil {
		t.Fatalf("latest: %v %v", st, err)
	}
	if !reflect.DeepEqual(st.Files, []string{"c.png", "a.png"}) {
		t.Fatalf("unexpected committed files %v", st.Files)
	}
	if st.Products[1].Source != "Page 2 - a.png" {
		t.Fatalf("a.png should be page 2, got %+v", st.Products)
	}
}

func TestDebounceWaitsForGrowingFile(t *testing.T) {
	dir := t.TempDir()
	w := &Watcher{Dir: dir, Stable: 150 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(dir, "upload.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	touchOld(t, dir, "settled.png")

	rescan := make(chan []string, 1)
	ready := make(chan string, 4)
	go w.debounce(ctx, nil, nil, rescan, ready)
	rescan <- []string{"settled.png", "upload.png"}

	// keep appending, the way a slow copy does
	var got []string
	writing := time.Now().Add(700 * time.Millisecond)
	for time.Now().Before(writing) {
		if _, err := f.Write(make([]byte, 512)); err != nil {
			t.Fatal(err)
		}
		select {
		case name := <-ready:
			if name == "upload.png" {
				t.Fatalf("upload.png forwarded while still being written")
			}
			got = append(got, name)
		default:
		}
		time.Sleep(40 * time.Millisecond)
	}
	f.Close()

	deadline := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case name := <-ready:
			got = append(got, name)
		case <-deadline:
			t.Fatalf("only forwarded %v", got)
		}
	}
	if !reflect.DeepEqual(got, []string{"settled.png", "upload.png"}) {
		t.Fatalf("unexpected forwarding order %v", got)
	}
}

func committed(store *progress.Store, input string, page int) func() bool {
	return func() bool {
		st, err := store.Checkpoints.Latest(context.Background(), input)
		return err == nil && st != nil && st.LastCompletedPage == page
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
