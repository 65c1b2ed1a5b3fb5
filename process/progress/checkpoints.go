package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"catalogscan/models"
	"catalogscan/pkg/ocr"
)

// ErrRunNotFound is returned by Get for an unknown run name.
var ErrRunNotFound = errors.New("run not found")

// Checkpoints persists RunState records separately from the human-readable outputs.
type Checkpoints interface {
	// Latest returns the newest incomplete run for input, or nil.
	Latest(ctx context.Context, input string) (*models.RunState, error)
	Save(ctx context.Context, st *models.RunState) error
	Get(ctx context.Context, name string) (*models.RunState, error)
	// List returns run summaries newest first; product and problem lists may be empty.
	List(ctx context.Context) ([]*models.RunState, error)
	Has(ctx context.Context, name string) (bool, error)
}

// FileCheckpoints keeps one JSON checkpoint next to each products table.
type FileCheckpoints struct {
	Dir string
}

func (f FileCheckpoints) paths() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.Dir, productsPrefix+"*"+checkpointSuffix))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

func (f FileCheckpoints) load(path string) (*models.RunState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st models.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &ocr.StateCorruptError{Path: path, Err: err}
	}
	if st.Name == "" || st.LastCompletedPage < 0 {
		return nil, &ocr.StateCorruptError{Path: path, Err: errors.New("missing run name or negative page")}
	}
	st.Recount()
	return &st, nil
}

func (f FileCheckpoints) Latest(ctx context.Context, input string) (*models.RunState, error) {
	paths, err := f.paths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := f.load(p)
		if err != nil {
			return nil, err
		}
		if !st.Completed && st.Input == input {
			return st, nil
		}
	}
	return nil, nil
}

func (f FileCheckpoints) Save(ctx context.Context, st *models.RunState) error {
	return writeFileAtomic(checkpointPath(f.Dir, st.Name), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	})
}

func (f FileCheckpoints) Get(ctx context.Context, name string) (*models.RunState, error) {
	if strings.ContainsAny(name, `/\`) {
		return nil, ErrRunNotFound
	}
	st, err := f.load(checkpointPath(f.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrRunNotFound)
	}
	return st, err
}

func (f FileCheckpoints) List(ctx context.Context) ([]*models.RunState, error) {
	paths, err := f.paths()
	if err != nil {
		return nil, err
	}
	out := make([]*models.RunState, 0, len(paths))
	for _, p := range paths {
		st, err := f.load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (f FileCheckpoints) Has(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(checkpointPath(f.Dir, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
