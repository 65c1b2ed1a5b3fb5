package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"catalogscan/models"
	"catalogscan/pkg/logger"
)

// Store owns the RunState of a run: it decides whether to resume, and after
// every page rewrites the products table and problematic log in full before
// saving the checkpoint. A crash between the two leaves a checkpoint one page
// behind the outputs, and that page is simply processed again.
type Store struct {
	Dir         string
	Mode        string
	Checkpoints Checkpoints
	Now         func() time.Time
}

func NewStore(dir, mode string, cp Checkpoints) *Store {
	if cp == nil {
		cp = FileCheckpoints{Dir: dir}
	}
	return &Store{Dir: dir, Mode: mode, Checkpoints: cp, Now: time.Now}
}

// Begin returns the state to continue from: the newest incomplete checkpoint
// for input, else the newest products table that has no checkpoint, else a
// fresh run. An unreadable checkpoint or table is returned as a
// StateCorruptError and must stop the run.
func (s *Store) Begin(ctx context.Context, input string, totalPages int) (*models.RunState, error) {
	log := logger.WithComponent("progress")
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}

	st, err := s.Checkpoints.Latest(ctx, input)
	if err != nil {
		return nil, err
	}
	if st != nil {
		st.TotalPages = totalPages
		log.Info().Str("run", st.Name).Int("last_page", st.LastCompletedPage).
			Int("products", st.ProductCount).Msg("resuming from checkpoint")
		return st, nil
	}

	st, err = s.adoptLegacy(ctx)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if st.Mode != s.Mode {
			log.Warn().Str("file_mode", st.Mode).Str("mode", s.Mode).Msg("resumed output was written in another mode")
		}
		st.RunID = uuid.NewString()
		st.Input = input
		st.Mode = s.Mode
		st.TotalPages = totalPages
		log.Info().Str("run", st.Name).Int("last_page", st.LastCompletedPage).
			Msg("resuming from output file without checkpoint")
		return st, nil
	}

	name, err := s.newName(ctx)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	st = &models.RunState{
		RunID:      uuid.NewString(),
		Name:       name,
		Input:      input,
		Mode:       s.Mode,
		TotalPages: totalPages,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	log.Info().Str("run", name).Int("pages", totalPages).Msg("starting new run")
	return st, nil
}

// adoptLegacy picks the newest products table tracked by neither the
// configured checkpoints nor a JSON checkpoint beside it. The second check
// keeps runs written before a switch to postgres from being adopted.
func (s *Store) adoptLegacy(ctx context.Context) (*models.RunState, error) {
	paths, err := orphanOutputs(s.Dir)
	if err != nil {
		return nil, err
	}
	files := FileCheckpoints{Dir: s.Dir}
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), ".csv")
		has, err := s.Checkpoints.Has(ctx, name)
		if err != nil {
			return nil, err
		}
		if !has {
			if has, err = files.Has(ctx, name); err != nil {
				return nil, err
			}
		}
		if has {
			continue
		}
		log := logger.WithComponent("progress")
		log.Warn().Str("file", p).Msg("adopting products table without checkpoint")
		return ReadLegacy(p)
	}
	return nil, nil
}

func (s *Store) newName(ctx context.Context) (string, error) {
	base := productsPrefix + s.Now().Format(timestampLayout)
	name := base
	for i := 2; ; i++ {
		has, err := s.Checkpoints.Has(ctx, name)
		if err != nil {
			return "", err
		}
		if _, statErr := os.Stat(ProductsPath(s.Dir, name)); !has && os.IsNotExist(statErr) {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// Commit persists the full accumulated state: products table, problematic
// log, then checkpoint.
func (s *Store) Commit(ctx context.Context, st *models.RunState) error {
	st.UpdatedAt = s.Now()
	st.Recount()
	if err := writeFileAtomic(ProductsPath(s.Dir, st.Name), func(w io.Writer) error {
		return WriteProducts(w, st.Mode, st.Products)
	}); err != nil {
		return fmt.Errorf("write products: %w", err)
	}
	if err := writeFileAtomic(ProblematicPath(s.Dir, st.Name), func(w io.Writer) error {
		return WriteProblematic(w, st.Problematic)
	}); err != nil {
		return fmt.Errorf("write problematic log: %w", err)
	}
	if err := s.Checkpoints.Save(ctx, st); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Finish marks the run completed so the next run on the same input starts fresh.
func (s *Store) Finish(ctx context.Context, st *models.RunState) error {
	st.Completed = true
	return s.Commit(ctx, st)
}
